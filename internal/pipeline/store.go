package pipeline

import (
	"errors"
	"sync"

	"threadpilot/internal/model"
)

var ErrResultNotFound = errors.New("result not found")

// ResultStore 最近 limit 个合并结果，仅在内存中，满了淘汰最早的一个。
// 存取都做深拷贝，调用方拿到的结果可以随意修改。
type ResultStore struct {
	mu      sync.RWMutex
	limit   int
	results map[string]*model.Result
	order   []string
}

func NewResultStore(limit int) *ResultStore {
	if limit <= 0 {
		limit = 1
	}
	return &ResultStore{
		limit:   limit,
		results: make(map[string]*model.Result),
	}
}

// Save 保存结果
func (s *ResultStore) Save(r *model.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.results[r.ID]; !exists {
		s.order = append(s.order, r.ID)
	}
	s.results[r.ID] = r.Clone()
	for len(s.order) > s.limit {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.results, oldest)
	}
}

// Get 获取结果
func (s *ResultStore) Get(id string) (*model.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.results[id]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// EditPost 修改某条帖子的正文，配图、占位标记和优化建议保持不变
func (s *ResultStore) EditPost(id string, index int, text string) (*model.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.results[id]
	if !ok {
		return nil, ErrResultNotFound
	}
	if err := r.Thread.EditPost(index, text); err != nil {
		return nil, err
	}
	return r.Clone(), nil
}

func (s *ResultStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}
