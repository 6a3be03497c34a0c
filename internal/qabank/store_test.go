package qabank

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polzovatel/easy-apply-agent/internal/answers"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "qa.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenCreatesMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "qa.db")
	s, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestLookupExactMatch(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Upsert("How many years of Go experience?", "5", answers.JobContext{Title: "Backend Engineer"}))

	entry, score, err := s.Lookup("how many years of GO experience", 0.8)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 1.0, score)
	assert.Equal(t, "5", entry.Answer)
	assert.Equal(t, "Backend Engineer", entry.JobTitle)
	assert.Equal(t, "how many years of go experience", entry.QuestionNormalized)
}

func TestLookupFuzzyMatch(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Upsert("Years of experience with Kubernetes?", "3", answers.JobContext{}))

	entry, score, err := s.Lookup("How many years of experience with Kubernetes do you have", 0.4)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "3", entry.Answer)
	assert.GreaterOrEqual(t, score, 0.4)
	assert.Less(t, score, 1.0)
}

func TestLookupBelowThresholdReturnsNil(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Upsert("Years of experience with Kubernetes?", "3", answers.JobContext{}))

	entry, score, err := s.Lookup("Do you require visa sponsorship", 0.8)
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.Zero(t, score)
}

func TestLookupEmptyQuestion(t *testing.T) {
	s := openTestStore(t)
	entry, score, err := s.Lookup("  ?!  ", 0.5)
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.Zero(t, score)
}

func TestUpsertIsIdempotentOnNormalizedQuestion(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Upsert("Expected salary?", "100000", answers.JobContext{}))
	require.NoError(t, s.Upsert("expected SALARY", "120000", answers.JobContext{Company: "Acme"}))

	all, err := s.All(10)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "120000", all[0].Answer)
	assert.Equal(t, "Acme", all[0].Company)
	assert.Equal(t, 2, all[0].TimesUsed)
}

func TestUpsertEmptyQuestionRejected(t *testing.T) {
	s := openTestStore(t)
	assert.Error(t, s.Upsert("???", "x", answers.JobContext{}))
}

func TestTouchUsageAndRecordSuccess(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Upsert("Willing to relocate?", "yes", answers.JobContext{}))
	entry, _, err := s.Lookup("willing to relocate", 0.9)
	require.NoError(t, err)
	require.NotNil(t, entry)

	require.NoError(t, s.TouchUsage(entry.ID))
	require.NoError(t, s.RecordSuccess(entry.ID))

	again, _, err := s.Lookup("willing to relocate", 0.9)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, entry.TimesUsed+1, again.TimesUsed)
	assert.Equal(t, entry.SuccessCount+1, again.SuccessCount)
	assert.False(t, again.LastUsed.IsZero())
}

func TestAllOrdersByUsage(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Upsert("Question one about relocation", "a", answers.JobContext{}))
	require.NoError(t, s.Upsert("Question two about salary", "b", answers.JobContext{}))
	require.NoError(t, s.Upsert("Question two about salary", "b", answers.JobContext{}))

	all, err := s.All(10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "question two about salary", all[0].QuestionNormalized)
}

func TestFindSimilarAdapter(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Remember(answers.NewQuestion("Notice period in weeks?", answers.JobContext{}), "2"))

	hit, err := s.FindSimilar("notice period in weeks", 0.8)
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, "2", hit.Answer)
	assert.Equal(t, 1.0, hit.Score)
	require.NoError(t, s.MarkUsed(hit.ID))

	miss, err := s.FindSimilar("completely different topic", 0.8)
	require.NoError(t, err)
	assert.Nil(t, miss)
}

func TestFingerprintStability(t *testing.T) {
	a := Fingerprint("How many years of experience with Go?")
	b := Fingerprint("years experience with many How of Go?")
	assert.Equal(t, a, b, "fingerprint must ignore word order and short words")
	assert.Len(t, a, 8)

	c := Fingerprint("Do you require visa sponsorship now or in the future?")
	assert.NotEqual(t, a, c)
}
