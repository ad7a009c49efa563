package phase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"identity-verify/models"
)

func validPortrait() models.Portrait {
	var d models.Descriptor
	d[0] = 1
	return models.Portrait{Descriptor: d}
}

func TestControllerAdvancesLinearlyOnSuccess(t *testing.T) {
	c := New("sess-1")
	assert.Equal(t, models.AwaitMrz, c.State().Phase)

	require.NoError(t, c.SubmitMrz(models.MrzRecord{IDNumber: "D23145890"}))
	assert.Equal(t, models.AwaitPortrait, c.State().Phase)

	require.NoError(t, c.SubmitPortrait(validPortrait()))
	assert.Equal(t, models.AwaitLiveness, c.State().Phase)

	require.NoError(t, c.SubmitLiveness(models.LivenessResult{IsLive: true}, models.MatchResult{IsMatch: true}))
	assert.Equal(t, models.Review, c.State().Phase)

	require.NoError(t, c.Submit())
	assert.Equal(t, models.Submitted, c.State().Phase)
}

func TestControllerRejectsMrzWithoutDocumentNumber(t *testing.T) {
	c := New("sess-2")
	err := c.SubmitMrz(models.MrzRecord{})
	assert.Error(t, err)
	assert.Equal(t, models.AwaitMrz, c.State().Phase)
}

func TestControllerStaysInAwaitLivenessOnMismatch(t *testing.T) {
	c := New("sess-3")
	require.NoError(t, c.SubmitMrz(models.MrzRecord{IDNumber: "D23145890"}))
	require.NoError(t, c.SubmitPortrait(validPortrait()))

	err := c.SubmitLiveness(models.LivenessResult{IsLive: true}, models.MatchResult{IsMatch: false, Distance: 0.72})
	assert.Error(t, err)
	assert.Equal(t, models.AwaitLiveness, c.State().Phase)
}

func TestControllerBackClearsWipedPhaseData(t *testing.T) {
	c := New("sess-4")
	require.NoError(t, c.SubmitMrz(models.MrzRecord{IDNumber: "D23145890"}))
	require.NoError(t, c.SubmitPortrait(validPortrait()))

	require.NoError(t, c.Back())
	state := c.State()
	assert.Equal(t, models.AwaitPortrait, state.Phase)
	assert.Nil(t, state.Portrait)
	assert.NotNil(t, state.Mrz)
}

func TestControllerBackAtFirstPhaseErrors(t *testing.T) {
	c := New("sess-5")
	assert.Error(t, c.Back())
}

func TestRestoreResumesFromPersistedState(t *testing.T) {
	rec := models.MrzRecord{IDNumber: "D23145890"}
	c := Restore(models.PhaseState{SessionID: "sess-6", Phase: models.AwaitPortrait, Mrz: &rec})
	assert.Equal(t, models.AwaitPortrait, c.State().Phase)

	require.NoError(t, c.SubmitPortrait(validPortrait()))
	assert.Equal(t, models.AwaitLiveness, c.State().Phase)
}

// fakeStreamManager records the order StartStream/StopStream are
// called in, so a test can assert stream N is stopped before stream
// N+1 is acquired.
type fakeStreamManager struct {
	calls []string
}

func (f *fakeStreamManager) StartStream() error {
	f.calls = append(f.calls, "start")
	return nil
}

func (f *fakeStreamManager) StopStream() error {
	f.calls = append(f.calls, "stop")
	return nil
}

func TestControllerStopsStreamBeforeAcquiringNext(t *testing.T) {
	streams := &fakeStreamManager{}
	c := New("sess-7")
	c.Streams = streams

	require.NoError(t, c.SubmitMrz(models.MrzRecord{IDNumber: "D23145890"}))
	require.NoError(t, c.SubmitPortrait(validPortrait()))
	assert.Equal(t, []string{"stop", "start", "stop", "start"}, streams.calls)

	require.NoError(t, c.SubmitLiveness(models.LivenessResult{IsLive: true}, models.MatchResult{IsMatch: true}))
	// Review needs no stream, so leaving AwaitLiveness only stops.
	assert.Equal(t, []string{"stop", "start", "stop", "start", "stop"}, streams.calls)
}

func TestControllerBackRestoresPriorPhaseStream(t *testing.T) {
	streams := &fakeStreamManager{}
	c := New("sess-8")
	c.Streams = streams

	require.NoError(t, c.SubmitMrz(models.MrzRecord{IDNumber: "D23145890"}))
	streams.calls = nil

	require.NoError(t, c.Back())
	assert.Equal(t, models.AwaitMrz, c.State().Phase)
	assert.Equal(t, []string{"stop", "start"}, streams.calls)
}
