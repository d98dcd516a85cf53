// Package pipeline 定义了文本清洗、表格解析与情感打标的核心流程。
package pipeline

// Classifier 是情感模型的最小接口，由 pkg/sentiment.Model 实现。
type Classifier interface {
	Predict(text string) string
}

// LabeledText 是一条打好标签的文本。Text 保留原文，Cleaned 是送入模型的文本。
type LabeledText struct {
	Text      string
	Cleaned   string
	Sentiment string
}

// Processor 封装了清洗器与分类器，对一批文本打标签。
type Processor struct {
	cleaner    *Cleaner
	classifier Classifier
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(cleaner *Cleaner, classifier Classifier) *Processor {
	if cleaner == nil {
		cleaner = NewCleaner(nil)
	}
	return &Processor{cleaner: cleaner, classifier: classifier}
}

// LabelOne 清洗并预测单条文本；清洗后为空时 ok 为 false。
func (p *Processor) LabelOne(text string) (LabeledText, bool) {
	cleaned := p.cleaner.Clean(text)
	if cleaned == "" {
		return LabeledText{}, false
	}
	return LabeledText{
		Text:      text,
		Cleaned:   cleaned,
		Sentiment: p.classifier.Predict(cleaned),
	}, true
}

// Label 清洗并预测每条文本，清洗后为空的文本被丢弃，其余保持输入顺序。
func (p *Processor) Label(texts []string) []LabeledText {
	out := make([]LabeledText, 0, len(texts))
	for _, t := range texts {
		if lt, ok := p.LabelOne(t); ok {
			out = append(out, lt)
		}
	}
	return out
}
