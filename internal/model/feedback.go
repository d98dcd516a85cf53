package model

import "time"

// 情感分类器输出的标签。
const (
	SentimentPositive = "positivo"
	SentimentNegative = "negativo"
	SentimentNeutral  = "neutro"
)

// ValidSentiment 判断给定标签是否属于分类器的标签集合。
func ValidSentiment(s string) bool {
	switch s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	}
	return false
}

// FeedbackResult 对应 ai_response 表，每行是一条已打标签的文本。
// 同一次导入的所有行共享 ConsultedQueryDate 与 RelatedKey。
type FeedbackResult struct {
	ID                  uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Text                string     `gorm:"type:text;not null" json:"text"`
	SentimentPrediction string     `gorm:"type:varchar(32);not null" json:"sentiment_prediction"`
	ConsultedQueryDate  time.Time  `gorm:"not null;index" json:"consulted_query_date"`
	UserID              string     `gorm:"type:char(36);not null;index" json:"user_id"`
	RelatedKey          string     `gorm:"type:varchar(191);not null;index" json:"related_key"`
	ArticleTitle        *string    `gorm:"type:varchar(1024)" json:"article_title,omitempty"`
	ArticleSourceName   *string    `gorm:"type:varchar(255)" json:"article_source_name,omitempty"`
	ArticlePublishedAt  *time.Time `json:"article_published_at,omitempty"`
	OriginalKeyword     *string    `gorm:"type:varchar(255)" json:"original_keyword,omitempty"`
}

func (FeedbackResult) TableName() string {
	return "ai_response"
}

// BatchTag 对应 ai_response_tags 表，每次导入恰好一行。
// Key 为 user_id 与 tag 的拼接，唯一索引保证同一用户不会出现重复的标签。
type BatchTag struct {
	ID                 uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Tag                string    `gorm:"type:varchar(255);not null" json:"tag"`
	ConsultedQueryDate time.Time `gorm:"not null" json:"consulted_query_date"`
	UserID             string    `gorm:"type:char(36);not null;index" json:"user_id"`
	RelatedKey         string    `gorm:"type:varchar(191);not null;uniqueIndex:uniq_tags_related_key" json:"related_key"`
	Key                string    `gorm:"column:key;type:varchar(300);not null;uniqueIndex:uniq_tags_key" json:"key"`
	SourceObject       string    `gorm:"type:varchar(512)" json:"source_object,omitempty"`
}

func (BatchTag) TableName() string {
	return "ai_response_tags"
}

// TagKey 计算用户维度的标签唯一键。
func TagKey(userID, tag string) string {
	return userID + tag
}

// FilteredRow 是过滤查询返回的一行。
type FilteredRow struct {
	Date      LocalTime `json:"date"`
	Sentiment string    `json:"sentiment"`
	Text      string    `json:"text"`
	Tag       string    `json:"tag"`
}

// SentimentCount 是按标签与情感分组后的计数。
type SentimentCount struct {
	Tag       string `json:"tag"`
	Sentiment string `json:"sentiment"`
	Count     int64  `json:"count"`
}
