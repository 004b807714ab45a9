package entity_test

import (
	"testing"

	"briefingcore/internal/domain/entity"

	"github.com/stretchr/testify/assert"
)

func TestReportValidate(t *testing.T) {
	t.Run("rejects empty report", func(t *testing.T) {
		r := &entity.Report{}
		assert.Error(t, r.Validate(10))
	})

	t.Run("rejects more than max items", func(t *testing.T) {
		items := make([]entity.ReportItem, 11)
		for i := range items {
			items[i] = entity.ReportItem{Position: i + 1, Score: 100 - i}
		}
		r := &entity.Report{Items: items}
		assert.Error(t, r.Validate(10))
	})

	t.Run("rejects non-contiguous positions", func(t *testing.T) {
		r := &entity.Report{Items: []entity.ReportItem{
			{Position: 1, Score: 90},
			{Position: 3, Score: 80},
		}}
		assert.Error(t, r.Validate(10))
	})

	t.Run("rejects increasing scores", func(t *testing.T) {
		r := &entity.Report{Items: []entity.ReportItem{
			{Position: 1, Score: 50},
			{Position: 2, Score: 90},
		}}
		assert.Error(t, r.Validate(10))
	})

	t.Run("accepts valid descending report", func(t *testing.T) {
		r := &entity.Report{Items: []entity.ReportItem{
			{Position: 1, Score: 90},
			{Position: 2, Score: 80},
			{Position: 3, Score: 80},
		}}
		assert.NoError(t, r.Validate(10))
	})
}
