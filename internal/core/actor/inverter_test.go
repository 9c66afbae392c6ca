package actor

import (
	"errors"
	"testing"
	"time"

	"github.com/berfenger/eosconnect/internal/core/domain"
	"github.com/berfenger/eosconnect/internal/core/service"
	"github.com/berfenger/eosconnect/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spawnInverter(t *testing.T, as *actor.ActorSystem, driver *recordingDriver) *actor.PID {
	logger := testLogger()
	actuator := service.NewActuator(driver, 5000, logger)
	pid := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewInverterActor(actuator, logger)
	}))
	t.Cleanup(func() { as.Root.Stop(pid) })
	return pid
}

func applyDecision(t *testing.T, as *actor.ActorSystem, pid *actor.PID, d domain.ControlDecision) domain.ApplyDecisionResponse {
	res, err := as.Root.RequestFuture(pid, domain.ApplyDecisionRequest{Decision: d}, 2*time.Second).Result()
	require.NoError(t, err)
	resp, ok := res.(domain.ApplyDecisionResponse)
	require.True(t, ok)
	return resp
}

func TestInverterActorAppliesChangedTargets(t *testing.T) {
	as := actorutil.NewActorSystemWithZapLogger(testLogger())
	defer as.Shutdown()

	driver := &recordingDriver{}
	pid := spawnInverter(t, as, driver)

	charge := domain.ControlDecision{Mode: domain.ModeChargeFromGrid, ACChargeDemandW: 7000}
	resp := applyDecision(t, as, pid, charge)
	require.False(t, resp.HasResponseError())
	assert.True(t, resp.Applied)

	resp = applyDecision(t, as, pid, charge)
	assert.False(t, resp.Applied, "unchanged target is skipped")

	targets := driver.Targets()
	require.Len(t, targets, 1)
	assert.Equal(t, 5000.0, targets[0].ACChargeDemandW, "bounded by the battery charge power")
}

func TestInverterActorReportsFailure(t *testing.T) {
	as := actorutil.NewActorSystemWithZapLogger(testLogger())
	defer as.Shutdown()

	driver := &recordingDriver{err: errors.New("modbus down")}
	pid := spawnInverter(t, as, driver)

	resp := applyDecision(t, as, pid, domain.ControlDecision{Mode: domain.ModeAvoidDischarge})
	var failed domain.ActuationFailed
	require.ErrorAs(t, resp.GetResponseError(), &failed)
	assert.Equal(t, "recording", failed.Driver)
	assert.False(t, resp.Applied)

	// still alive and serving
	res, err := as.Root.RequestFuture(pid, domain.ActorHealthRequest{}, time.Second).Result()
	require.NoError(t, err)
	assert.True(t, res.(domain.ActorHealthResponse).Healthy)
}

func TestInverterActorKeepAlive(t *testing.T) {
	as := actorutil.NewActorSystemWithZapLogger(testLogger())
	defer as.Shutdown()

	driver := &recordingDriver{keepAlive: 100 * time.Millisecond}
	pid := spawnInverter(t, as, driver)

	resp := applyDecision(t, as, pid, domain.ControlDecision{Mode: domain.ModeAvoidDischarge})
	require.True(t, resp.Applied)

	assert.Eventually(t, func() bool {
		return len(driver.Targets()) >= 3
	}, 2*time.Second, 50*time.Millisecond)
	for _, target := range driver.Targets() {
		assert.Equal(t, domain.ModeAvoidDischarge, target.Mode)
	}
}
