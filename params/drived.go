package params

import (
	"os"
	"path/filepath"
	"time"

	homedir "github.com/mitchellh/go-homedir"
)

const (
	ParticipantsDir = "participants"

	SessionDBName = "session.db"
)

var (
	RecordsBucket = []byte("records")
	EventsBucket  = []byte("events")
	MetaBucket    = []byte("meta")
)

// DefaultDatadirRoot is where participant session stores live
// unless overridden by flag or config.
var DefaultDatadirRoot = func() string {
	home, err := homedir.Dir()
	if err != nil {
		panic(err)
	}
	return filepath.Join(home, ".drived")
}()

func ParticipantDataDir(root, participantID string) string {
	return filepath.Join(root, ParticipantsDir, participantID)
}

var DefaultChannelCap = 1024

var (
	CacheLastPushTTL  = 1 * time.Hour
	CacheLastKnownTTL = 24 * time.Hour
)

// DedupeCacheSize bounds the LRU used for exact-duplicate sample rejection.
var DedupeCacheSize = 10_000

// LiveSessionCacheSize bounds how many participant sessions the web daemon
// keeps warm at once; least-recently-active sessions are evicted and their
// stores closed.
var LiveSessionCacheSize = 256

// InfluxDB export settings come from the environment, matching how the
// study's field deployments are provisioned.
var (
	INFLUXDB_URL    = os.Getenv("INFLUXDB_URL")
	INFLUXDB_TOKEN  = os.Getenv("INFLUXDB_TOKEN")
	INFLUXDB_ORG    = os.Getenv("INFLUXDB_ORG")
	INFLUXDB_BUCKET = os.Getenv("INFLUXDB_BUCKET")
)
