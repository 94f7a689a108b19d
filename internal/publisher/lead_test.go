package publisher_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/heir-finder/internal/publisher"
	"github.com/JakeFAU/heir-finder/internal/publisher/memory"
	"github.com/JakeFAU/heir-finder/internal/scraper"
)

func outcome() scraper.SearchOutcome {
	return scraper.SearchOutcome{
		RunID:      "run-9",
		Item:       scraper.ItemRef{Index: 4, Label: "4.2", Raw: "SMITH JOHN & MARY"},
		Identity:   scraper.Identity{FirstName: "MARY", LastName: "SMITH", SearchTerm: "SMITH MARY"},
		Property:   scraper.PropertyInfo{AccountNumber: "001"},
		Result:     scraper.Clean(2, map[string]string{"case_type": "GUARDIANSHIP"}),
		Worker:     3,
		FinishedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestSinkPublishesLead(t *testing.T) {
	t.Parallel()

	pub := memory.New()
	sink, err := publisher.NewSink(pub, "leads")
	require.NoError(t, err)

	require.NoError(t, sink.Record(context.Background(), outcome()))

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "leads", msgs[0].Event)
	lead, ok := msgs[0].Payload.(publisher.Lead)
	require.True(t, ok)
	assert.Equal(t, "4.2", lead.Row)
	assert.Equal(t, "SMITH MARY", lead.SearchTerm)
	assert.Equal(t, scraper.StatusFoundClean, lead.Status)
	assert.Equal(t, 2, lead.ResultCount)
	assert.Equal(t, "GUARDIANSHIP", lead.Fields["case_type"])
	assert.Equal(t, "001", lead.Property.AccountNumber)
}

func TestSinkWrapsError(t *testing.T) {
	t.Parallel()

	sink, err := publisher.NewSink(&memory.Publisher{Err: errors.New("offline")}, "leads")
	require.NoError(t, err)
	err = sink.Record(context.Background(), outcome())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "4.2")
}

func TestNewSinkValidation(t *testing.T) {
	t.Parallel()

	_, err := publisher.NewSink(nil, "leads")
	require.Error(t, err)
	_, err = publisher.NewSink(memory.New(), "")
	require.Error(t, err)
}
