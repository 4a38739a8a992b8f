package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingTB struct {
	logs []string
}

func (r *recordingTB) Helper() {}
func (r *recordingTB) Skip(...interface{}) {}
func (r *recordingTB) Skipf(string, ...interface{}) {}
func (r *recordingTB) Fatal(...interface{}) {}
func (r *recordingTB) Fatalf(string, ...interface{}) {}
func (r *recordingTB) Logf(format string, _ ...interface{}) { r.logs = append(r.logs, format) }

func TestSelectTestRedisDB_EnvOverride(t *testing.T) {
	t.Setenv("TEST_REDIS_DB", "7")
	assert.Equal(t, 7, selectTestRedisDB(&recordingTB{}, "127.0.0.1:0"))
}

func TestEnvBool(t *testing.T) {
	for _, v := range []string{"1", "true", "YES", "y"} {
		t.Setenv("TESTUTIL_FLAG", v)
		assert.True(t, envBool("TESTUTIL_FLAG"), v)
	}
	t.Setenv("TESTUTIL_FLAG", "nope")
	assert.False(t, envBool("TESTUTIL_FLAG"))
}

func TestRequireRedis(t *testing.T) {
	t.Setenv("TEST_REQUIRE_REDIS", "")
	t.Setenv("TEST_REQUIRE_INFRA", "")
	assert.False(t, requireRedis())

	t.Setenv("TEST_REQUIRE_INFRA", "true")
	assert.True(t, requireRedis())
}

func TestRegisterRequestBuilder(t *testing.T) {
	req := NewRegisterRequest("g1", "gremlin").WithEndpoint("e:1").WithMetadata("zone", "a").Build()
	assert.Equal(t, "g1", req.Key.GraphID)
	assert.Equal(t, "e:1", req.Endpoint)
	assert.Equal(t, "a", req.Metadata["zone"])
	assert.NoError(t, req.Validate())
}
