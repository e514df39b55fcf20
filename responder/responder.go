// Package responder 生成助手回复
//
// 没有接入模型，Mock 从按语言区分的模板里随机挑一条，填入用户输入。
package responder

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/language"
)

const (
	LocaleEN   = "en"
	LocaleZhCN = "zh-CN"
	LocaleZhTW = "zh-TW"
)

// Responder 根据用户输入生成回复
type Responder interface {
	Reply(ctx context.Context, locale, prompt string) (string, error)
}

var templates = map[string][]string{
	LocaleEN: {
		"I understand you said: %s. That's an interesting topic.",
		"About \"%s\", I think it deserves some deeper thought.",
		"Good question: %s. Let me walk you through it.",
		"Thanks for asking: %s. It's definitely worth discussing.",
		"Regarding \"%s\", here are a few thoughts...",
		"Response to: %s",
	},
	LocaleZhCN: {
		"我理解您说的是：%s。这是一个很有趣的话题。",
		"关于您提到的「%s」，我认为这需要更深入的思考。",
		"您的问题很好：%s。让我为您详细解答一下。",
		"感谢您的提问：%s。这确实是一个值得探讨的问题。",
		"针对您说的「%s」，我有以下几点看法...",
	},
	LocaleZhTW: {
		"我理解您說的是：%s。這是一個很有趣的話題。",
		"關於您提到的「%s」，我認為這需要更深入的思考。",
		"您的問題很好：%s。讓我為您詳細解答一下。",
		"感謝您的提問：%s。這確實是一個值得探討的問題。",
		"針對您說的「%s」，我有以下幾點看法...",
	},
}

var titlePrefixes = map[string]string{
	LocaleEN:   "New Chat",
	LocaleZhCN: "新对话",
	LocaleZhTW: "新對話",
}

// Mock 模板回复，可选延迟
type Mock struct {
	mu     sync.Mutex
	rnd    *rand.Rand
	delay  time.Duration
	locale string
}

// NewMock seed 为 0 时用当前时间
func NewMock(delay time.Duration, defaultLocale string, seed int64) *Mock {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Mock{
		rnd:    rand.New(rand.NewSource(seed)),
		delay:  delay,
		locale: MatchLocale(defaultLocale),
	}
}

func (m *Mock) Reply(ctx context.Context, locale, prompt string) (string, error) {
	if m.delay > 0 {
		timer := time.NewTimer(m.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	set, ok := templates[locale]
	if !ok {
		set = templates[m.locale]
	}

	m.mu.Lock()
	tmpl := set[m.rnd.Intn(len(set))]
	m.mu.Unlock()

	return fmt.Sprintf(tmpl, strings.TrimSpace(prompt)), nil
}

// DefaultLocale 请求未指定语言时使用
func (m *Mock) DefaultLocale() string { return m.locale }

var (
	supported = []language.Tag{
		language.English,
		language.SimplifiedChinese,
		language.TraditionalChinese,
	}
	matcher = language.NewMatcher(supported)
)

// MatchLocale 把 locale 值或 Accept-Language 映射到支持的语言，无法识别时返回 en
func MatchLocale(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return LocaleEN
	}
	tags, _, err := language.ParseAcceptLanguage(raw)
	if err != nil || len(tags) == 0 {
		return LocaleEN
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return LocaleEN
	}
	switch idx {
	case 1:
		return LocaleZhCN
	case 2:
		return LocaleZhTW
	default:
		return LocaleEN
	}
}

// DefaultTitle 未填标题时的会话名，如 "新对话 03-01 09:30"
func DefaultTitle(locale string, now time.Time) string {
	prefix, ok := titlePrefixes[locale]
	if !ok {
		prefix = titlePrefixes[LocaleEN]
	}
	return prefix + " " + now.Format("01-02 15:04")
}
