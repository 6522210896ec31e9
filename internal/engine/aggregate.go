package engine

import (
	"regexp"
	"strconv"

	"go.uber.org/zap"

	"github.com/mpecan/tokf-sub001/internal/filter"
)

// aggregate reduces items with rule. Every matching item adds one to the
// count and, when capture group 1 is an integer, its value to the sum.
func aggregate(items []string, re *regexp.Regexp, rule filter.AggregateRule) map[string]string {
	result := make(map[string]string)
	if re == nil {
		return result
	}
	sum, count := 0, 0
	for _, item := range items {
		m := re.FindStringSubmatch(item)
		if m == nil {
			continue
		}
		count++
		if len(m) > 1 {
			if n, err := strconv.Atoi(m[1]); err == nil {
				sum += n
			}
		}
	}
	if rule.Sum != "" {
		result[rule.Sum] = strconv.Itoa(sum)
	}
	if rule.CountAs != "" {
		result[rule.CountAs] = strconv.Itoa(count)
	}
	return result
}

// aggregateBucket resolves rule.From against buckets. An unknown bucket
// yields an empty result.
func (a *applier) aggregateBucket(rule filter.AggregateRule, buckets map[string][]string) map[string]string {
	items, ok := buckets[rule.From]
	if !ok {
		a.log.Debug("aggregate over unknown bucket", zap.String("from", rule.From))
		return map[string]string{}
	}
	return aggregate(items, a.rules.compile("aggregate", rule.Pattern), rule)
}
