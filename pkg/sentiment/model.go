// Package sentiment 加载预训练的文本情感分类器，并对清洗后的文本给出标签。
//
// 模型以 JSON 文件分发：词表 + 可选的 IDF 权重构成向量化器，
// 线性分类器的系数与截距构成打分函数。模型加载后只读，可在多个 goroutine 间共享。
package sentiment

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"unicode/utf8"
)

// minTokenLen 与训练时的分词规则保持一致：至少两个字符的 token 才进入词表。
const minTokenLen = 2

// Model 是一个已拟合的词袋向量化器加线性分类器。
type Model struct {
	Labels     []string       `json:"labels"`
	Vocabulary map[string]int `json:"vocabulary"`
	IDF        []float64      `json:"idf,omitempty"`
	Binary     bool           `json:"binary"`
	Coef       [][]float64    `json:"coef"`
	Intercept  []float64      `json:"intercept"`
	StopWords  []string       `json:"stop_words,omitempty"`

	stop map[string]struct{}
}

// Load 从磁盘读取模型文件。
func Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sentiment model: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse 从 reader 中解析并校验模型。
func Parse(r io.Reader) (*Model, error) {
	var m Model
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode sentiment model: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	m.stop = make(map[string]struct{}, len(m.StopWords))
	for _, w := range m.StopWords {
		m.stop[w] = struct{}{}
	}
	return &m, nil
}

func (m *Model) validate() error {
	if len(m.Labels) < 2 {
		return errors.New("sentiment model: at least two labels required")
	}
	if len(m.Vocabulary) == 0 {
		return errors.New("sentiment model: empty vocabulary")
	}
	rows := len(m.Coef)
	switch {
	case rows == 1 && len(m.Labels) == 2:
	case rows == len(m.Labels):
	default:
		return fmt.Errorf("sentiment model: %d coefficient rows for %d labels", rows, len(m.Labels))
	}
	if len(m.Intercept) != rows {
		return fmt.Errorf("sentiment model: %d intercepts for %d coefficient rows", len(m.Intercept), rows)
	}
	n := len(m.Vocabulary)
	for i, row := range m.Coef {
		if len(row) != n {
			return fmt.Errorf("sentiment model: coefficient row %d has %d columns, vocabulary has %d", i, len(row), n)
		}
	}
	if m.IDF != nil && len(m.IDF) != n {
		return fmt.Errorf("sentiment model: idf has %d entries, vocabulary has %d", len(m.IDF), n)
	}
	for tok, idx := range m.Vocabulary {
		if idx < 0 || idx >= n {
			return fmt.Errorf("sentiment model: vocabulary index %d for %q out of range", idx, tok)
		}
	}
	return nil
}

// Vectorize 把文本映射为稀疏特征向量（列号 → 权重）。
func (m *Model) Vectorize(text string) map[int]float64 {
	features := make(map[int]float64)
	for _, tok := range strings.Fields(text) {
		if utf8.RuneCountInString(tok) < minTokenLen {
			continue
		}
		if _, skip := m.stop[tok]; skip {
			continue
		}
		idx, ok := m.Vocabulary[tok]
		if !ok {
			continue
		}
		if m.Binary {
			features[idx] = 1
		} else {
			features[idx]++
		}
	}

	if m.IDF != nil && len(features) > 0 {
		var norm float64
		for idx, tf := range features {
			w := tf * m.IDF[idx]
			features[idx] = w
			norm += w * w
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for idx := range features {
				features[idx] /= norm
			}
		}
	}
	return features
}

// Scores 返回每一行系数的线性得分。
func (m *Model) Scores(text string) []float64 {
	x := m.Vectorize(text)
	scores := make([]float64, len(m.Coef))
	for i, row := range m.Coef {
		s := m.Intercept[i]
		for idx, v := range x {
			s += row[idx] * v
		}
		scores[i] = s
	}
	return scores
}

// Predict 返回文本的情感标签。
// 二分类模型只有一行系数，得分大于 0 取第二个标签；多分类取得分最高的标签，平局取靠前者。
func (m *Model) Predict(text string) string {
	scores := m.Scores(text)
	if len(scores) == 1 {
		if scores[0] > 0 {
			return m.Labels[1]
		}
		return m.Labels[0]
	}
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return m.Labels[best]
}
