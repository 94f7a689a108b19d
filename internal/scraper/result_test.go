package scraper

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultConstructors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		result    Result
		status    Status
		count     int
		disq      bool
		errDetail string
	}{
		{name: "clean", result: Clean(3, nil), status: StatusFoundClean, count: 3},
		{name: "disqualified", result: Disqualified(2, map[string]string{"k": "v"}), status: StatusDisqualified, count: 2, disq: true},
		{name: "not found", result: NotFound(), status: StatusNotFound},
		{name: "timeout", result: TimedOut(), status: StatusTimeout},
		{name: "error", result: Failed(errors.New("boom")), status: StatusError, errDetail: "boom"},
		{name: "nil error", result: Failed(nil), status: StatusError, errDetail: "unknown error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.True(t, tc.result.Valid())
			assert.Equal(t, tc.status, tc.result.Status())
			assert.Equal(t, tc.count, tc.result.Count())
			assert.Equal(t, tc.disq, tc.result.Disqualifying())
			assert.Equal(t, tc.errDetail, tc.result.ErrorDetail())
		})
	}
	assert.False(t, Result{}.Valid())
}

func TestResultFieldsAreCopied(t *testing.T) {
	t.Parallel()

	fields := map[string]string{"matched_cards": "1"}
	r := Clean(1, fields)
	fields["matched_cards"] = "9"
	assert.Equal(t, "1", r.Field("matched_cards"))

	out := r.Fields()
	out["matched_cards"] = "7"
	assert.Equal(t, "1", r.Field("matched_cards"))
	assert.Empty(t, NotFound().Fields())
}

func TestAnyDisqualified(t *testing.T) {
	t.Parallel()

	assert.False(t, AnyDisqualified(nil))
	assert.False(t, AnyDisqualified([]Result{Clean(1, nil), NotFound()}))
	assert.False(t, AnyDisqualified([]Result{TimedOut(), Failed(errors.New("x"))}))
	assert.True(t, AnyDisqualified([]Result{NotFound(), Disqualified(1, nil), Clean(2, nil)}))
}

func TestResultMarshalJSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(Disqualified(2, map[string]string{"disqualifying_case": "HEIRSHIP"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"DISQUALIFIED","result_count":2,"disqualifying":true,"fields":{"disqualifying_case":"HEIRSHIP"}}`, string(data))
}

func TestWorkItemLabel(t *testing.T) {
	t.Parallel()

	single := WorkItem{Index: 12, Identities: []Identity{{LastName: "DOE"}}}
	assert.Equal(t, "12", single.Label(0))

	joint := WorkItem{Index: 12, Identities: []Identity{{LastName: "DOE"}, {LastName: "DOE"}}}
	assert.Equal(t, "12.1", joint.Label(0))
	assert.Equal(t, "12.2", joint.Label(1))
}

func TestIdentityFullName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "JANE Q DOE", Identity{FirstName: "JANE", MiddleName: "Q", LastName: "DOE"}.FullName())
	assert.Equal(t, "DOE", Identity{LastName: "DOE"}.FullName())
	assert.Equal(t, "N/A", Or(""))
	assert.Equal(t, "x", Or("x"))
}
