package sensors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodeflow/sentinel/pkg/deferral"
	"github.com/lodeflow/sentinel/pkg/events"
	"github.com/lodeflow/sentinel/pkg/log"
	"github.com/lodeflow/sentinel/pkg/triggers/objectkey"
)

func objectKeyConfig(keys ...string) ObjectKeyConfig {
	return ObjectKeyConfig{
		Bucket:       "lake",
		Keys:         keys,
		PokeInterval: time.Millisecond,
		Timeout:      time.Minute,
	}
}

func TestObjectKeySensor_CompletesWhenKeysAlreadyPresent(t *testing.T) {
	store := newMemoryStore("a", "b")

	sensor, err := NewObjectKeySensor("s1", objectKeyConfig("a", "b"), staticResolver{store: store}, log.Discard())
	require.NoError(t, err)

	d, err := sensor.Execute(context.Background())
	require.NoError(t, err)
	assert.Nil(t, d, "present keys complete without deferring")
}

func TestObjectKeySensor_DefersWhenKeysMissing(t *testing.T) {
	store := newMemoryStore("a")

	sensor, err := NewObjectKeySensor("s1", objectKeyConfig("a", "b"), staticResolver{store: store}, log.Discard())
	require.NoError(t, err)

	d, err := sensor.Execute(context.Background())
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, time.Minute, d.Timeout)

	typeName, params := d.Trigger.Serialize()
	assert.Equal(t, objectkey.TypeName, typeName)
	assert.Equal(t, "lake", params["bucket"])
}

func TestObjectKeySensor_PokeErrorIsSkipUnderSoftFail(t *testing.T) {
	store := newMemoryStore()
	store.headErr = errors.New("access denied")

	cfg := objectKeyConfig("a")
	cfg.SoftFail = true

	sensor, err := NewObjectKeySensor("s1", cfg, staticResolver{store: store}, log.Discard())
	require.NoError(t, err)

	_, err = sensor.Execute(context.Background())
	require.True(t, deferral.IsSkip(err))
}

func TestObjectKeySensor_PokeErrorIsHardByDefault(t *testing.T) {
	store := newMemoryStore()
	store.headErr = errors.New("access denied")

	sensor, err := NewObjectKeySensor("s1", objectKeyConfig("a"), staticResolver{store: store}, log.Discard())
	require.NoError(t, err)

	_, err = sensor.Execute(context.Background())
	require.Error(t, err)
	assert.False(t, deferral.IsSkip(err))
}

func TestObjectKeySensor_PredicateGatesCompletion(t *testing.T) {
	store := newMemoryStore("in/part-0")

	cfg := objectKeyConfig("in/part-0")
	cfg.Predicate = func(files []events.ObjectMeta) bool {
		var total int64
		for _, f := range files {
			total += f.Size
		}

		return total >= 100
	}

	sensor, err := NewObjectKeySensor("s1", cfg, staticResolver{store: store}, log.Discard())
	require.NoError(t, err)

	// Keys exist but the predicate over their sizes does not hold yet.
	d, err := sensor.Execute(context.Background())
	require.NoError(t, err)
	require.NotNil(t, d)

	_, params := d.Trigger.Serialize()
	assert.Equal(t, true, params["has_predicate"])

	// A running event with still-small objects defers again.
	d, err = sensor.ExecuteComplete(context.Background(), events.Running([]events.ObjectMeta{{Key: "in/part-0", Size: 1}}))
	require.NoError(t, err)
	assert.NotNil(t, d)

	// Enough data arrived; the same event shape now completes the sensor.
	d, err = sensor.ExecuteComplete(context.Background(), events.Running([]events.ObjectMeta{{Key: "in/part-0", Size: 150}}))
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestObjectKeySensor_ResumeOutcomes(t *testing.T) {
	store := newMemoryStore()

	sensor, err := NewObjectKeySensor("s1", objectKeyConfig("a"), staticResolver{store: store}, log.Discard())
	require.NoError(t, err)

	d, err := sensor.ExecuteComplete(context.Background(), events.Success(nil))
	require.NoError(t, err)
	assert.Nil(t, d)

	_, err = sensor.ExecuteComplete(context.Background(), events.Error("bucket gone", false))
	require.Error(t, err)
	assert.False(t, deferral.IsSkip(err))

	_, err = sensor.ExecuteComplete(context.Background(), events.Error("bucket gone", true))
	require.True(t, deferral.IsSkip(err))
}

func TestObjectKeySensor_EndToEndThroughRunner(t *testing.T) {
	store := newMemoryStore()

	sensor, err := NewObjectKeySensor("s1", objectKeyConfig("in/data.csv"), staticResolver{store: store}, log.Discard())
	require.NoError(t, err)

	runner := deferral.NewRunner("runner-1", nil, log.Discard())

	done := make(chan error, 1)

	go func() { done <- runner.RunSensor(context.Background(), sensor) }()

	time.Sleep(20 * time.Millisecond)
	store.put("in/data.csv", 1)

	require.NoError(t, <-done)
}

func TestObjectKeySensor_FalsePredicateRedefersUntilDeadline(t *testing.T) {
	store := newMemoryStore("in/a")

	cfg := objectKeyConfig("in/a")
	cfg.Predicate = func([]events.ObjectMeta) bool { return false }

	sensor, err := NewObjectKeySensor("s1", cfg, staticResolver{store: store}, log.Discard())
	require.NoError(t, err)

	runner := deferral.NewRunner("runner-1", nil, log.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// The keys exist, so each deferral resolves to a running event, the
	// predicate rejects it and the sensor defers again until the host
	// deadline fails the run.
	err = runner.RunSensor(ctx, sensor)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestObjectKeySensor_TimeoutFailsRun(t *testing.T) {
	store := newMemoryStore()

	cfg := objectKeyConfig("never")
	cfg.Timeout = 30 * time.Millisecond

	sensor, err := NewObjectKeySensor("s1", cfg, staticResolver{store: store}, log.Discard())
	require.NoError(t, err)

	runner := deferral.NewRunner("runner-1", nil, log.Discard())

	err = runner.RunSensor(context.Background(), sensor)
	require.ErrorIs(t, err, deferral.ErrDeferralTimeout)
}

func TestNewObjectKeySensor_RejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  ObjectKeyConfig
	}{
		{name: "missing bucket", cfg: ObjectKeyConfig{Keys: []string{"a"}, PokeInterval: time.Second, Timeout: time.Second}},
		{name: "no keys", cfg: ObjectKeyConfig{Bucket: "lake", PokeInterval: time.Second, Timeout: time.Second}},
		{name: "empty key", cfg: ObjectKeyConfig{Bucket: "lake", Keys: []string{""}, PokeInterval: time.Second, Timeout: time.Second}},
		{name: "zero timeout", cfg: ObjectKeyConfig{Bucket: "lake", Keys: []string{"a"}, PokeInterval: time.Second}},
		{name: "bad mode", cfg: ObjectKeyConfig{Bucket: "lake", Keys: []string{"a"}, Mode: "glob", PokeInterval: time.Second, Timeout: time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewObjectKeySensor("s1", tt.cfg, staticResolver{store: newMemoryStore()}, log.Discard())
			require.Error(t, err)
		})
	}
}
