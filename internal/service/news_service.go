package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"feed-ai-go/internal/config"
	"feed-ai-go/internal/model"
	"feed-ai-go/internal/pipeline"
	"feed-ai-go/internal/repository"
	"feed-ai-go/pkg/events"
	"feed-ai-go/pkg/kafka"
	"feed-ai-go/pkg/log"
	"feed-ai-go/pkg/newsapi"
)

const (
	newsTagLayout    = "2006/01/02-15:04"
	snippetLength    = 150
	maxNewsPageSize  = 30
	defaultNewsSort  = "relevancy"
	defaultNewsLang  = "pt"
	msgNewsRetryable = "News provider is temporarily unavailable, try again later"
	msgNewsFatal     = "News provider rejected the request"
)

// NewsService 定义了按关键词检索新闻并分析情感的业务操作。
type NewsService interface {
	AnalyzeKeyword(ctx context.Context, userID, keyword string) (*NewsAnalysis, error)
}

// ArticleAnalysis 是单篇新闻的分析结果。
type ArticleAnalysis struct {
	Title       string `json:"title"`
	Source      string `json:"source"`
	PublishedAt string `json:"published_at"`
	TextSnippet string `json:"text_snippet"`
	Sentiment   string `json:"sentiment"`
}

// NewsAnalysis 是一次关键词分析的完整响应。
type NewsAnalysis struct {
	Message                string            `json:"message"`
	KeywordSearched        string            `json:"keyword_searched"`
	TagID                  uint              `json:"tag_id"`
	RelatedKey             string            `json:"related_key"`
	ArticlesProcessedCount int               `json:"articles_processed_count"`
	AnalysisResults        []ArticleAnalysis `json:"analysis_results"`
}

type newsService struct {
	ingestor
	client    newsapi.Client
	processor *pipeline.Processor
	language  string
	sortBy    string
	pageSize  int
	now       func() time.Time
}

// NewNewsService 创建一个新的 NewsService 实例，page size 最大为 30。
func NewNewsService(
	repo repository.FeedbackRepository,
	client newsapi.Client,
	processor *pipeline.Processor,
	publisher kafka.Publisher,
	cfg config.NewsAPIConfig,
) NewsService {
	s := &newsService{
		ingestor:  ingestor{repo: repo, publisher: publisher},
		client:    client,
		processor: processor,
		language:  cfg.Language,
		sortBy:    cfg.SortBy,
		pageSize:  cfg.PageSize,
		now:       time.Now,
	}
	if s.language == "" {
		s.language = defaultNewsLang
	}
	if s.sortBy == "" {
		s.sortBy = defaultNewsSort
	}
	if s.pageSize <= 0 || s.pageSize > maxNewsPageSize {
		s.pageSize = maxNewsPageSize
	}
	return s
}

type analyzedArticle struct {
	article newsapi.Article
	labeled pipeline.LabeledText
}

// AnalyzeKeyword 检索关键词相关的新闻，对每篇文章的描述（缺失时用正文）打标签，
// 并以 "<keyword>-YYYY/MM/DD-HH:MM" 为标签保存为一个批次。
func (s *newsService) AnalyzeKeyword(ctx context.Context, userID, keyword string) (*NewsAnalysis, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, BadRequest("keyword is required")
	}

	at := s.now().UTC()
	tag := fmt.Sprintf("%s-%s", keyword, at.Format(newsTagLayout))
	if err := validateTag(tag); err != nil {
		return nil, err
	}
	if err := s.checkTagAvailable(ctx, userID, tag); err != nil {
		return nil, err
	}

	articles, err := s.client.Search(ctx, newsapi.Query{
		Keyword:  keyword,
		Language: s.language,
		SortBy:   s.sortBy,
		PageSize: s.pageSize,
	})
	if err != nil {
		if newsapi.IsRetryable(err) {
			return nil, newError(http.StatusServiceUnavailable, msgNewsRetryable, err)
		}
		return nil, newError(http.StatusBadGateway, msgNewsFatal, err)
	}

	var analyzed []analyzedArticle
	for _, a := range articles {
		text := a.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		lt, ok := s.processor.LabelOne(text)
		if !ok {
			continue
		}
		analyzed = append(analyzed, analyzedArticle{article: a, labeled: lt})
	}
	if len(analyzed) == 0 {
		log.Infof("[NewsService] no usable articles for keyword %q", keyword)
		return nil, NotFound(MsgNoArticles)
	}

	rows := make([]model.FeedbackResult, len(analyzed))
	results := make([]ArticleAnalysis, len(analyzed))
	for i, aa := range analyzed {
		rows[i] = model.FeedbackResult{
			Text:                aa.labeled.Text,
			SentimentPrediction: aa.labeled.Sentiment,
			ArticleTitle:        optional(aa.article.Title),
			ArticleSourceName:   optional(aa.article.Source.Name),
			ArticlePublishedAt:  parsePublishedAt(aa.article.PublishedAt),
			OriginalKeyword:     optional(keyword),
		}
		results[i] = ArticleAnalysis{
			Title:       aa.article.Title,
			Source:      aa.article.Source.Name,
			PublishedAt: aa.article.PublishedAt,
			TextSnippet: snippet(aa.labeled.Text),
			Sentiment:   aa.labeled.Sentiment,
		}
	}

	bt, err := s.ingest(ctx, userID, tag, at, rows, events.SourceNews)
	if err != nil {
		return nil, err
	}

	return &NewsAnalysis{
		Message:                "success",
		KeywordSearched:        keyword,
		TagID:                  bt.ID,
		RelatedKey:             bt.RelatedKey,
		ArticlesProcessedCount: len(rows),
		AnalysisResults:        results,
	}, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// parsePublishedAt 解析 RFC3339 发布时间，无法解析时返回 nil。
func parsePublishedAt(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

// snippet 取前 150 个字符并追加 "..."。
func snippet(text string) string {
	runes := []rune(text)
	if len(runes) > snippetLength {
		runes = runes[:snippetLength]
	}
	return string(runes) + "..."
}
