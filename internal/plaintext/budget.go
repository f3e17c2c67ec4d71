package plaintext

import "strings"

// EstimateTokens gives a rough token count from the word count.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	tokens := int(float64(len(strings.Fields(text))) * 1.33)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}

// Fit returns the longest prefix of text that stays within maxTokens,
// cutting at paragraph boundaries, then sentence boundaries, then words.
// maxTokens <= 0 means no limit.
func Fit(text string, maxTokens int) string {
	if maxTokens <= 0 || EstimateTokens(text) <= maxTokens {
		return text
	}

	var out []string
	used := 0
	for _, para := range splitByParagraphs(text) {
		n := EstimateTokens(para)
		if used+n <= maxTokens {
			out = append(out, para)
			used += n
			continue
		}
		if rest := fitSentences(para, maxTokens-used); rest != "" {
			out = append(out, rest)
		}
		break
	}
	return strings.Join(out, "\n\n")
}

func fitSentences(para string, budget int) string {
	var out []string
	used := 0
	for _, sent := range splitSentences(para) {
		n := EstimateTokens(sent)
		if used+n > budget {
			if len(out) == 0 {
				return fitWords(sent, budget)
			}
			break
		}
		out = append(out, sent)
		used += n
	}
	return strings.Join(out, " ")
}

func fitWords(s string, budget int) string {
	words := strings.Fields(s)
	n := int(float64(budget) / 1.33)
	if n <= 0 {
		return ""
	}
	if n > len(words) {
		n = len(words)
	}
	return strings.Join(words[:n], " ")
}

func splitByParagraphs(text string) []string {
	var result []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}

func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	for i, r := range text {
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && i+1 < len(text) && text[i+1] == ' ' {
			sentences = append(sentences, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}
	if current.Len() > 0 {
		sentences = append(sentences, strings.TrimSpace(current.String()))
	}
	return sentences
}
