package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppendAuditExtendsInOrder(t *testing.T) {
	job := &PrintJob{}
	job.AppendAudit(EventJobCreated, nil)
	job.AppendAudit(EventJobEnqueued, map[string]any{"batchSize": 10})

	if assert.Len(t, job.Audit, 2) {
		assert.Equal(t, EventJobCreated, job.Audit[0].Event)
		assert.Equal(t, EventJobEnqueued, job.Audit[1].Event)
		assert.Equal(t, 10, job.Audit[1].Details["batchSize"])
	}
}

func TestAppendAuditNeverMutatesPriorEntries(t *testing.T) {
	job := &PrintJob{}
	job.AppendAudit(EventJobCreated, nil)
	first := job.Audit[0]
	job.AppendAudit(EventPageRendered, map[string]any{"pageIndex": 1})
	assert.Equal(t, first, job.Audit[0])
}

func TestEffectiveUsedPrefersCanonicalWhenGreater(t *testing.T) {
	a := &DocumentAccess{PrintsUsed: 5, UsedPrints: 2}
	assert.Equal(t, 5, a.EffectiveUsed())
}

func TestEffectiveUsedFallsBackToLegacyWhenGreater(t *testing.T) {
	a := &DocumentAccess{PrintsUsed: 1, UsedPrints: 4}
	assert.Equal(t, 4, a.EffectiveUsed())
}
