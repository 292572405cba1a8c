package services

import "strings"

// Bilingual sentiment lexicons. Words are matched as substrings of the
// lower-cased comment, so "bon" also hits "bonne" and "bonjour".
var (
	positiveWords = []string{
		"excellent", "super", "génial", "parfait", "magnifique", "formidable", "incroyable",
		"fantastique", "merveilleux", "exceptionnel", "top", "bien", "bon", "beau", "belle",
		"qualité", "satisfait", "content", "heureux", "recommande", "adore", "aime", "love",
		"bravo", "merci", "rapide", "efficace", "professionnel", "meilleur", "great", "good",
		"amazing", "awesome", "wonderful", "nice", "beautiful", "happy", "perfect", "best",
	}

	negativeWords = []string{
		"mauvais", "nul", "horrible", "terrible", "décevant", "déçu", "problème", "probleme",
		"défectueux", "cassé", "abîmé", "arnaque", "faux", "fake", "lent", "long", "retard",
		"jamais", "pire", "éviter", "rembourser", "remboursement", "médiocre", "passable",
		"bad", "worst", "terrible", "awful", "poor", "disappointed", "broken", "scam",
		"hate", "never", "slow", "late", "refund", "return", "horrible", "useless",
	}
)

// IsPositive combines lexicon hits with the rating, which weighs double.
// Duplicate lexicon entries count once per occurrence in the list.
func IsPositive(comment string, rating int) bool {
	if strings.TrimSpace(comment) == "" {
		return rating >= 3
	}
	lower := strings.ToLower(comment)
	score := countHits(lower, positiveWords) - countHits(lower, negativeWords) + 2*(rating-3)
	return score >= 0
}

func countHits(text string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			n++
		}
	}
	return n
}
