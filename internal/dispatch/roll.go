package dispatch

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"relaybot/internal/domain"
)

// splitRollParams expects exactly two integers with min < max.
func splitRollParams(params string) (int64, int64, bool) {
	fields := strings.Fields(params)
	if len(fields) != 2 {
		return 0, 0, false
	}
	min, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	max, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	if min >= max {
		return 0, 0, false
	}
	return min, max, true
}

func roll(min, max int64) int64 {
	return min + rand.Int63n(max-min+1)
}

func (d *Dispatcher) cmdRoll(source domain.ChannelRef, params string) {
	min, max, ok := splitRollParams(params)
	if !ok {
		d.say(source, fmt.Sprintf("Usage: %sroll <min> <max>", d.prefix))
		return
	}
	d.say(source, strconv.FormatInt(roll(min, max), 10))
}
