package registry

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// adjectives and nouns combine into human-readable session IDs like
// "brave-quiet-otter". Two adjective lists times one noun list gives
// roughly 36000 combinations, comfortably above the handful of
// sessions a single machine runs concurrently.
var adjectivesA = []string{
	"brave", "calm", "eager", "fuzzy", "glad", "hollow", "idle", "jolly",
	"keen", "lively", "mellow", "nimble", "olive", "plain", "quiet",
	"rapid", "sharp", "tidy", "upbeat", "vivid", "warm", "young",
	"zesty", "amber", "bold", "crisp", "dusty", "earnest", "faint",
	"giddy",
}

var adjectivesB = []string{
	"azure", "bright", "cozy", "dapper", "eastern", "frosty", "grand",
	"humble", "inky", "jagged", "lucky", "misty", "northern", "oaken",
	"pale", "quick", "rustic", "silent", "thin", "urban", "velvet",
	"windy", "xeric", "yellow", "zonal", "ashen", "breezy", "coastal",
	"dry", "even",
}

var nouns = []string{
	"otter", "falcon", "badger", "heron", "lynx", "sparrow", "marten",
	"wren", "beetle", "cobra", "dolphin", "ember", "ferret", "gecko",
	"hawk", "ibis", "jackal", "koala", "lemur", "moth", "newt", "oriole",
	"panther", "quail", "raven", "swan", "tapir", "urchin", "vole",
	"walrus", "yak", "zebra", "antler", "bison", "crane", "dingo",
	"egret", "finch", "gibbon", "mantis",
}

// randomName returns an adjective-adjective-noun triple drawn from
// crypto/rand. attempt only feeds the fallback index used if
// crypto/rand fails; otherwise it has no effect on the name.
func randomName(attempt int) string {
	a := adjectivesA[randIndex(len(adjectivesA), attempt)]
	b := adjectivesB[randIndex(len(adjectivesB), attempt+1)]
	n := nouns[randIndex(len(nouns), attempt+2)]
	return fmt.Sprintf("%s-%s-%s", a, b, n)
}

func randIndex(n int, salt int) int {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand failure is effectively unheard of on a real
		// kernel; fall back to a salt-derived index rather than
		// panicking mid-allocation.
		return salt % n
	}
	v := binary.LittleEndian.Uint64(buf[:])
	return int(v % uint64(n))
}
