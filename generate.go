package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"threadpilot/internal/model"
	"threadpilot/internal/render"
)

type generateOptions struct {
	text       string
	file       string
	videoURL   string
	articleURL string
	platform   string
	style      string
	length     int
	audience   string
	format     string
}

// request 三种输入必须且只能提供一种
func (o generateOptions) request() (model.GenerationRequest, error) {
	var req model.GenerationRequest
	sources := 0
	for _, v := range []string{o.text, o.file, o.videoURL, o.articleURL} {
		if strings.TrimSpace(v) != "" {
			sources++
		}
	}
	if sources != 1 {
		return req, errors.New("provide exactly one of --text, --file, --video-url or --article-url")
	}

	switch {
	case o.text != "":
		req.InputType, req.Content = model.InputText, o.text
	case o.file != "":
		var data []byte
		var err error
		if o.file == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(o.file)
		}
		if err != nil {
			return req, fmt.Errorf("read input: %w", err)
		}
		req.InputType, req.Content = model.InputText, string(data)
	case o.videoURL != "":
		req.InputType, req.URL = model.InputVideoURL, o.videoURL
	default:
		req.InputType, req.URL = model.InputArticleURL, o.articleURL
	}

	p, err := model.ParsePlatform(o.platform)
	if err != nil {
		return req, &model.ValidationError{Field: "platform", Reason: err.Error()}
	}
	s, err := model.ParseStyle(o.style)
	if err != nil {
		return req, &model.ValidationError{Field: "style", Reason: err.Error()}
	}
	req.Platform, req.Style = p, s
	req.ThreadLength = o.length
	req.TargetAudience = o.audience
	return req, nil
}

func defaultFormat(out io.Writer) string {
	if f, ok := out.(*os.File); ok {
		fd := f.Fd()
		if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
			return "table"
		}
	}
	return "json"
}

func writeResult(out io.Writer, format string, r *model.Result) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(newGenerateResponse(r))
	case "markdown", "md":
		_, err := fmt.Fprint(out, render.Markdown(r))
		return err
	case "html":
		html, err := render.HTML(r)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(out, html)
		return err
	case "table":
		_, err := fmt.Fprint(out, render.Table(r))
		return err
	default:
		return fmt.Errorf("unknown format %q (want json, markdown, html or table)", format)
	}
}

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var opts generateOptions

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one thread and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			req, err := opts.request()
			if err != nil {
				return err
			}
			format := strings.ToLower(strings.TrimSpace(opts.format))
			if format == "" {
				format = defaultFormat(cmd.OutOrStdout())
			}

			a, err := newApp(cmd.Context(), cfg, logrus.StandardLogger())
			if err != nil {
				return err
			}
			result, err := a.pipeline.Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), format, result)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.text, "text", "", "Source text (50-15000 characters)")
	flags.StringVar(&opts.file, "file", "", "Read source text from a file (- for stdin)")
	flags.StringVar(&opts.videoURL, "video-url", "", "Transcribe this video and use the transcript")
	flags.StringVar(&opts.articleURL, "article-url", "", "Extract the article text from this page")
	flags.StringVar(&opts.platform, "platform", string(model.PlatformTwitter), "Twitter or LinkedIn")
	flags.StringVar(&opts.style, "style", string(model.StyleProfessional), "Professional, Casual, Storytelling or Educational")
	flags.IntVar(&opts.length, "length", model.DefaultThreadLength, "Target number of posts (5-15)")
	flags.StringVar(&opts.audience, "audience", "", "Target audience for posting-time suggestions")
	flags.StringVarP(&opts.format, "format", "f", "", "Output format: json, markdown, html or table (default table on a terminal, json otherwise)")
	return cmd
}
