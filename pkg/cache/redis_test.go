package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/timetable-engine/pkg/config"
)

func TestKeySkipsEmptyParts(t *testing.T) {
	assert.Equal(t, "timetable:detect:abc", Key("detect", " ", "abc"))
	assert.Equal(t, "timetable", Key())
}

func TestOptionsFromConfig(t *testing.T) {
	opts := Options(config.RedisConfig{Host: "cache", Port: 6380, Password: "pw", DB: 2})

	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 2, opts.DB)
}
