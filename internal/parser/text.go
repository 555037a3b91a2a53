package parser

import (
	"bytes"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodePlainText 将 text/plain 字节解码为 UTF-8。非 UTF-8 内容按 Windows-1252 解码。
func decodePlainText(data []byte) string {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data)
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "")
	}
	return string(decoded)
}

// cleanText NFKC 归一化并去掉控制字符，保留换行
func cleanText(s string) string {
	s = norm.NFKC.String(s)
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r == '\r':
			return -1
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, s)
}

// foldText 用于匹配的归一化形式：NFKC + 大小写折叠
func foldText(s string) string {
	// cases.Caser 有状态，不能跨协程共享
	return cases.Fold().String(norm.NFKC.String(s))
}

func isTermRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '#' || r == '_'
}

// findTerm 返回 term 在 text 中第一次按整词出现的位置，不存在返回 -1。
// 两者都应已经过 foldText。
func findTerm(text, term string) int {
	if term == "" {
		return -1
	}
	offset := 0
	for {
		i := strings.Index(text[offset:], term)
		if i < 0 {
			return -1
		}
		start := offset + i
		end := start + len(term)

		before, _ := utf8.DecodeLastRuneInString(text[:start])
		after, _ := utf8.DecodeRuneInString(text[end:])
		leftOK := start == 0 || !isTermRune(before) || !isTermRune(firstRune(term))
		rightOK := end == len(text) || !isTermRune(after) || !isTermRune(lastRune(term))
		if leftOK && rightOK {
			return start
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		offset = start + size
	}
}

func firstRune(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	return r
}

func lastRune(s string) rune {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r
}

// containsAnyTerm text 中是否按整词出现任一 term
func containsAnyTerm(text string, terms []string) bool {
	for _, t := range terms {
		if findTerm(text, t) >= 0 {
			return true
		}
	}
	return false
}

// truncateRunes 按字符截断
func truncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
