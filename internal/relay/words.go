package relay

import (
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
)

// Word pools for memorable room IDs. Three pools, one word from each,
// e.g. "brisk-otter-lantern".

var adjectives = []string{
	"brisk", "calm", "clever", "cozy", "eager", "fuzzy", "gentle", "golden", "happy", "jolly",
	"keen", "lively", "lucky", "mellow", "merry", "nimble", "plucky", "quiet", "rapid", "shiny",
	"silent", "snug", "solar", "spry", "sturdy", "sunny", "swift", "tidy", "vivid", "witty",
}

var creatures = []string{
	"otter", "badger", "falcon", "heron", "lynx", "marten", "osprey", "puffin", "raven", "stoat",
	"wren", "beaver", "condor", "dingo", "egret", "ferret", "gecko", "ibis", "jackal", "kestrel",
	"lemur", "magpie", "newt", "ocelot", "pika", "quail", "robin", "skink", "tapir", "vole",
}

var things = []string{
	"lantern", "anchor", "beacon", "compass", "drum", "ember", "flute", "gable", "harbor", "ingot",
	"jigsaw", "kettle", "ledger", "mosaic", "needle", "oar", "pylon", "quill", "rudder", "summit",
	"tiller", "urn", "vane", "wharf", "zephyr", "bridge", "canyon", "delta", "eyrie", "fjord",
}

// generateRoomID creates a random, memorable room ID using word
// combinations. Format: adjective-creature-thing.
func generateRoomID() string {
	return fmt.Sprintf("%s-%s-%s",
		adjectives[randomIndex(len(adjectives))],
		creatures[randomIndex(len(creatures))],
		things[randomIndex(len(things))],
	)
}

// randomIndex returns a cryptographically secure random index for a slice
// of given length.
func randomIndex(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		log.Panic("Failed to generate random index:", err)
	}
	return int(n.Int64())
}
