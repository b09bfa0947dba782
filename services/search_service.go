package services

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/moadong/moabbs/models"
	"github.com/moadong/moabbs/utils"
)

// Keyword length bounds. Queries outside the range return an empty page
// without error and are not logged.
const (
	searchKeywordMinLen = 2
	searchKeywordMaxLen = 100
)

// SearchService runs keyword searches over published posts and records every
// executed search in search_logs.
type SearchService struct {
	db *gorm.DB
}

// NewSearchService creates a new SearchService.
func NewSearchService(db *gorm.DB) *SearchService {
	return &SearchService{db: db}
}

// SearchOptions narrows and orders a search. Zero values mean: all boards,
// title+content, latest first, first page of 20.
type SearchOptions struct {
	BoardID  uint
	Fields   []string // "title", "content"
	Sort     string   // "latest", "oldest", "relevance"
	Page     int
	PageSize int
}

// SearchRequester identifies who ran the search, for the log row.
type SearchRequester struct {
	UserID    *uint
	IP        string
	UserAgent string
}

// SearchPosts finds published posts matching the keyword. Whitespace splits
// the keyword into terms that must all match; each term matches title or
// content per the requested fields.
func (s *SearchService) SearchPosts(ctx context.Context, keyword string, opts SearchOptions, req SearchRequester) ([]models.Post, int64, error) {
	keyword = strings.TrimSpace(keyword)
	n := utf8.RuneCountInString(keyword)
	if n < searchKeywordMinLen || n > searchKeywordMaxLen {
		return []models.Post{}, 0, nil
	}

	start := time.Now()
	posts, total, err := s.query(ctx, strings.Fields(keyword), true, opts)
	if err != nil {
		return nil, 0, err
	}
	s.logSearch(ctx, keyword, total, req, time.Since(start))
	return posts, total, nil
}

// SearchPostsWithMode is SearchPosts with pipe-separated keywords combined
// by the given mode ("or" or "and").
func (s *SearchService) SearchPostsWithMode(ctx context.Context, pipeKeywords, mode string, opts SearchOptions, req SearchRequester) ([]models.Post, int64, error) {
	pipeKeywords = strings.TrimSpace(pipeKeywords)
	n := utf8.RuneCountInString(pipeKeywords)
	if n < searchKeywordMinLen || n > searchKeywordMaxLen {
		return []models.Post{}, 0, nil
	}

	var terms []string
	for _, t := range strings.Split(pipeKeywords, "|") {
		if t = strings.TrimSpace(t); t != "" {
			terms = append(terms, t)
		}
	}
	if len(terms) == 0 {
		return []models.Post{}, 0, nil
	}

	start := time.Now()
	posts, total, err := s.query(ctx, terms, mode != "or", opts)
	if err != nil {
		return nil, 0, err
	}
	s.logSearch(ctx, pipeKeywords, total, req, time.Since(start))
	return posts, total, nil
}

// SearchPostsWithHighlight runs SearchPosts and wraps keyword occurrences in
// the returned titles and contents with the given tag, case-insensitively.
func (s *SearchService) SearchPostsWithHighlight(ctx context.Context, keyword, tag string, opts SearchOptions, req SearchRequester) ([]models.Post, int64, error) {
	posts, total, err := s.SearchPosts(ctx, keyword, opts, req)
	if err != nil || len(posts) == 0 {
		return posts, total, err
	}
	if tag == "" {
		tag = "mark"
	}

	var patterns []*regexp.Regexp
	for _, term := range strings.Fields(strings.TrimSpace(keyword)) {
		patterns = append(patterns, regexp.MustCompile("(?i)"+regexp.QuoteMeta(term)))
	}
	wrap := func(text string) string {
		for _, re := range patterns {
			text = re.ReplaceAllString(text, "<"+tag+">$0</"+tag+">")
		}
		return text
	}
	for i := range posts {
		posts[i].Title = wrap(posts[i].Title)
		posts[i].Content = wrap(posts[i].Content)
	}
	return posts, total, nil
}

func (s *SearchService) query(ctx context.Context, terms []string, andMode bool, opts SearchOptions) ([]models.Post, int64, error) {
	if opts.Page <= 0 {
		opts.Page = 1
	}
	if opts.PageSize <= 0 || opts.PageSize > 100 {
		opts.PageSize = 20
	}

	searchTitle, searchContent := fieldFlags(opts.Fields)

	q := s.db.WithContext(ctx).Model(&models.Post{}).
		Where("status = ?", models.PostStatusPublished)
	if opts.BoardID > 0 {
		q = q.Where("board_id = ?", opts.BoardID)
	}

	termCond := func(term string) *gorm.DB {
		like := "%" + term + "%"
		switch {
		case searchTitle && searchContent:
			return s.db.Where("title LIKE ?", like).Or("content LIKE ?", like)
		case searchContent:
			return s.db.Where("content LIKE ?", like)
		default:
			return s.db.Where("title LIKE ?", like)
		}
	}
	if andMode {
		for _, term := range terms {
			q = q.Where(termCond(term))
		}
	} else {
		or := termCond(terms[0])
		for _, term := range terms[1:] {
			or = or.Or(termCond(term))
		}
		q = q.Where(or)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Relevance ranking is not implemented; it deliberately falls back to
	// recency so the sort parameter stays forward-compatible.
	order := "created_at DESC"
	if opts.Sort == "oldest" {
		order = "created_at ASC"
	}

	var posts []models.Post
	if err := q.Preload("User").Order(order).
		Offset((opts.Page - 1) * opts.PageSize).Limit(opts.PageSize).
		Find(&posts).Error; err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func fieldFlags(fields []string) (title, content bool) {
	for _, f := range fields {
		switch f {
		case "title":
			title = true
		case "content":
			content = true
		}
	}
	if !title && !content {
		return true, true
	}
	return title, content
}

// logSearch writes the search_logs row. A failed write never fails the
// search itself.
func (s *SearchService) logSearch(ctx context.Context, keyword string, total int64, req SearchRequester, elapsed time.Duration) {
	row := models.SearchLog{
		Keyword:     keyword,
		ResultCount: total,
		UserID:      req.UserID,
		IP:          req.IP,
		UserAgent:   req.UserAgent,
		DurationMS:  elapsed.Milliseconds(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		utils.Sugar.Warnf("search log write failed: %v", err)
	}
}

// KeywordCount is one entry of the popular-keyword ranking.
type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int64  `json:"count"`
}

// GetPopularKeywords ranks the most searched keywords inside the trailing
// window.
func (s *SearchService) GetPopularKeywords(ctx context.Context, limit, days int) ([]KeywordCount, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	if days <= 0 {
		days = 7
	}
	since := time.Now().AddDate(0, 0, -days)

	var out []KeywordCount
	err := s.db.WithContext(ctx).Model(&models.SearchLog{}).
		Select("keyword, COUNT(*) AS count").
		Where("created_at >= ?", since).
		Group("keyword").
		Order("count DESC").
		Limit(limit).
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetSuggestions completes a partial keyword from words appearing in recent
// post titles. Partials shorter than two runes return nothing.
func (s *SearchService) GetSuggestions(ctx context.Context, partial string, limit int) ([]string, error) {
	partial = strings.TrimSpace(partial)
	if utf8.RuneCountInString(partial) < searchKeywordMinLen {
		return []string{}, nil
	}
	if limit <= 0 || limit > 20 {
		limit = 10
	}

	var titles []string
	err := s.db.WithContext(ctx).Model(&models.Post{}).
		Where("status = ? AND title LIKE ?", models.PostStatusPublished, "%"+partial+"%").
		Order("created_at DESC").
		Limit(200).
		Pluck("title", &titles).Error
	if err != nil {
		return nil, err
	}

	lower := strings.ToLower(partial)
	seen := map[string]bool{}
	out := []string{}
	for _, title := range titles {
		for _, word := range strings.Fields(title) {
			if !strings.Contains(strings.ToLower(word), lower) {
				continue
			}
			word = strings.Trim(word, ".,!?:;\"'()[]")
			if word == "" || seen[word] {
				continue
			}
			seen[word] = true
			out = append(out, word)
			if len(out) >= limit {
				return out, nil
			}
		}
	}
	return out, nil
}
