package pipeline

import (
	"regexp"
	"strings"
)

var (
	urlPattern       = regexp.MustCompile(`https?://\S+|www\.\S+`)
	htmlTagPattern   = regexp.MustCompile(`<[^>]*>`)
	nonLetterPattern = regexp.MustCompile(`[^\p{L}\s]+`)
)

// defaultStopWords 是常用的葡萄牙语停用词。
var defaultStopWords = []string{
	"a", "à", "ao", "aos", "aquela", "aquelas", "aquele", "aqueles", "aquilo", "as", "às", "até",
	"com", "como", "da", "das", "de", "dela", "delas", "dele", "deles", "depois", "do", "dos",
	"e", "é", "ela", "elas", "ele", "eles", "em", "entre", "era", "essa", "essas", "esse", "esses",
	"esta", "está", "estas", "este", "estes", "eu", "foi", "há", "isso", "isto", "já", "lhe",
	"lhes", "mais", "mas", "me", "mesmo", "meu", "meus", "minha", "minhas", "muito", "na", "nas",
	"no", "nos", "nós", "num", "numa", "o", "os", "ou", "para", "pela", "pelas", "pelo", "pelos",
	"por", "qual", "quando", "que", "quem", "se", "seu", "seus", "só", "sua", "suas", "também",
	"te", "tem", "têm", "um", "uma", "umas", "uns", "você", "vocês",
}

// Cleaner 把原始文本规范化为分类器训练时使用的形式。
type Cleaner struct {
	stopWords map[string]struct{}
}

// NewCleaner 创建一个 Cleaner；stopWords 为 nil 时使用内置的葡萄牙语停用词。
func NewCleaner(stopWords []string) *Cleaner {
	if stopWords == nil {
		stopWords = defaultStopWords
	}
	set := make(map[string]struct{}, len(stopWords))
	for _, w := range stopWords {
		set[strings.ToLower(w)] = struct{}{}
	}
	return &Cleaner{stopWords: set}
}

// Clean 依次执行：转小写、去除 URL 与 HTML 标签、非字母字符替换为空格、压缩空白、去除停用词。
// 保留所有 Unicode 字母，因此葡萄牙语重音字符不会丢失。
func (c *Cleaner) Clean(text string) string {
	s := strings.ToLower(text)
	s = urlPattern.ReplaceAllString(s, " ")
	s = htmlTagPattern.ReplaceAllString(s, " ")
	s = nonLetterPattern.ReplaceAllString(s, " ")

	words := strings.Fields(s)
	kept := words[:0]
	for _, w := range words {
		if _, stop := c.stopWords[w]; stop {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}
