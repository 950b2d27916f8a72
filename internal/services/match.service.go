package services

import (
	"relay/internal/logger"
	"strings"
)

// MatchService reconciles the address strings echoed back by the
// distance-matrix provider with the addresses we sent from account records.
// The two never agree byte for byte (the provider normalizes and appends the
// country), so the best match is the pool entry sharing the longest
// contiguous substring with the candidate.
type MatchService struct {
	log logger.Logger
}

func NewMatchService() *MatchService {
	return &MatchService{
		log: logger.New("MatchService"),
	}
}

var suffixReplacer = strings.NewReplacer(
	",", "",
	"street", "st",
	"road", "rd",
	"avenue", "ave",
)

func normalizeAddress(address string) string {
	return suffixReplacer.Replace(strings.ToLower(address))
}

// BestMatch returns the pool entry with the longest contiguous substring in
// common with candidate, after normalization. Ties go to the first pool entry
// that reached the maximum. An empty pool, or a pool with no overlap at all,
// returns the empty string; callers treat that as Home.
func (s *MatchService) BestMatch(candidate string, pool []string) string {
	if len(pool) == 0 {
		return ""
	}

	normalized := normalizeAddress(candidate)

	bestLength := 0
	bestIndex := -1
	for i, entry := range pool {
		length := longestCommonSubstring(normalizeAddress(entry), normalized)
		if length > bestLength {
			bestLength = length
			bestIndex = i
		}
	}

	if bestIndex < 0 {
		s.log.Function("BestMatch").
			Warn("no pool entry shares any substring with candidate", "candidate", candidate)
		return ""
	}

	return pool[bestIndex]
}

// longestCommonSubstring returns the length of the longest contiguous
// substring present in both a and b, by decreasing-length scan. Pool sizes
// are dozens of addresses, so the quadratic scan is fine.
func longestCommonSubstring(a, b string) int {
	for length := min(len(a), len(b)); length > 0; length-- {
		for i := 0; i+length <= len(b); i++ {
			if strings.Contains(a, b[i:i+length]) {
				return length
			}
		}
	}
	return 0
}
