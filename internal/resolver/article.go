package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/codeGROOVE-dev/retry"
	"github.com/sirupsen/logrus"

	"threadpilot/internal/model"
)

const userAgent = "Mozilla/5.0 (compatible; threadpilot/1.0; +https://github.com/threadpilot)"

// StatusError 非 2xx 响应
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.Code)
}

// ErrBlockedHost 文章链接解析到回环、内网或链路本地地址
var ErrBlockedHost = errors.New("article host resolves to a private or loopback address")

func blockedIP(ip net.IP) bool {
	return ip == nil || ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsInterfaceLocalMulticast()
}

// guardDial 在建立连接前检查实际要连接的 IP，DNS 解析后的地址同样受限
func guardDial(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	if blockedIP(net.ParseIP(host)) {
		return fmt.Errorf("%w: %s", ErrBlockedHost, host)
	}
	return nil
}

// retryable 网络错误、429 和 5xx 重试，其余 4xx 不重试
func retryable(err error) bool {
	if errors.Is(err, ErrBlockedHost) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	return true
}

// HTTPArticleFetcher 用 goquery 抽取网页正文，页面请求失败时退避重试。
// 只重试传输层，不涉及任何生成调用。
type HTTPArticleFetcher struct {
	Client   *http.Client
	Attempts uint
	Delay    time.Duration
	MaxChars int
	Logger   logrus.FieldLogger
}

func NewHTTPArticleFetcher(attempts uint, maxChars int, timeout time.Duration) *HTTPArticleFetcher {
	if attempts == 0 {
		attempts = 1
	}
	return &HTTPArticleFetcher{
		Client:   &http.Client{Timeout: timeout},
		Attempts: attempts,
		Delay:    time.Second,
		MaxChars: maxChars,
		Logger:   logrus.StandardLogger(),
	}
}

// BlockPrivateHosts 替换传输层，拒绝连接内网和回环地址，重定向同样生效。
// 不走代理。
func (f *HTTPArticleFetcher) BlockPrivateHosts() {
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second, Control: guardDial}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext

	client := &http.Client{Transport: transport}
	if f.Client != nil {
		client.Timeout = f.Client.Timeout
	}
	f.Client = client
}

func (f *HTTPArticleFetcher) FetchText(ctx context.Context, pageURL string) (string, error) {
	var text string
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}
			req.Header.Set("User-Agent", userAgent)
			req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

			start := time.Now()
			resp, err := f.Client.Do(req)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := resp.Body.Close(); closeErr != nil {
					f.Logger.WithError(closeErr).Warn("failed to close response body")
				}
			}()

			f.Logger.WithFields(logrus.Fields{
				"url":         pageURL,
				"status_code": resp.StatusCode,
				"duration_ms": time.Since(start).Milliseconds(),
			}).Debug("article fetched")

			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				_, _ = io.Copy(io.Discard, resp.Body)
				return &StatusError{URL: pageURL, Code: resp.StatusCode}
			}

			text, err = ExtractArticleText(resp.Body, f.MaxChars)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			return nil
		},
		retry.Attempts(f.Attempts),
		retry.Delay(f.Delay),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(f.Delay/2+time.Millisecond),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			f.Logger.WithFields(logrus.Fields{"url": pageURL, "attempt": n + 1}).WithError(err).Info("retrying article fetch")
		}),
		retry.RetryIf(retryable),
	)
	if err != nil {
		return "", err
	}
	return text, nil
}

var noiseSelectors = "script, style, noscript, nav, header, footer, aside, form, iframe, svg"

// ExtractArticleText 去掉脚本、样式和导航，优先取 article 内段落，
// 其次全部段落，最后整个 body；压缩空白并按码点截断到 maxChars（<=0 不截断）。
func ExtractArticleText(r io.Reader, maxChars int) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find(noiseSelectors).Remove()

	text := joinText(doc.Find("article p"))
	if text == "" {
		text = joinText(doc.Find("p"))
	}
	if text == "" {
		text = collapse(doc.Find("body").Text())
	}
	if maxChars > 0 {
		text = model.TruncateChars(text, maxChars)
	}
	return text, nil
}

func joinText(sel *goquery.Selection) string {
	parts := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		if t := collapse(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, " ")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
