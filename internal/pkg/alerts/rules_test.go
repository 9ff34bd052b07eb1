package alerts

import (
	"testing"

	"github.com/CrewBill/CrewBill/app/models"
	"github.com/stretchr/testify/assert"
)

func TestEvaluateReceiptCreated(t *testing.T) {
	tests := []struct {
		name  string
		facts SourceFacts
		want  *AlertMutation
	}{
		{
			name:  "billable unlinked receipt opens alert",
			facts: SourceFacts{AmountCents: 60000, Billable: true},
			want: &AlertMutation{
				Op:          OpOpen,
				AlertType:   models.AlertTypeReceiptUnbilled,
				SourceID:    7,
				AmountCents: 60000,
			},
		},
		{
			name:  "non-billable receipt matches nothing",
			facts: SourceFacts{AmountCents: 60000, Billable: false},
		},
		{
			name:  "already linked receipt matches nothing",
			facts: SourceFacts{AmountCents: 60000, Billable: true, LinkedToInvoice: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateReceiptCreated(7, tt.facts)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateScopeApproved(t *testing.T) {
	got := EvaluateScopeApproved(3, SourceFacts{AmountCents: 25000})
	assert.Equal(t, &AlertMutation{
		Op:          OpOpen,
		AlertType:   models.AlertTypeScopeApprovedNoInvoice,
		SourceID:    3,
		AmountCents: 25000,
	}, got)

	assert.Nil(t, EvaluateScopeApproved(3, SourceFacts{AmountCents: 25000, HasInvoiceLine: true}))
}

func TestEvaluateVoiceLogCreated(t *testing.T) {
	got := EvaluateVoiceLogCreated(11, SourceFacts{AmountCents: 4500, Billable: true})
	assert.Equal(t, &AlertMutation{
		Op:          OpOpen,
		AlertType:   models.AlertTypeVoiceLogNoInvoice,
		SourceID:    11,
		AmountCents: 4500,
	}, got)

	assert.Nil(t, EvaluateVoiceLogCreated(11, SourceFacts{Billable: false}))
	assert.Nil(t, EvaluateVoiceLogCreated(11, SourceFacts{Billable: true, LinkedToInvoice: true}))
}

func TestEvaluateInvoiceStateChanged(t *testing.T) {
	for _, state := range []string{models.InvoiceStatusSent, models.InvoiceStatusPaid} {
		got := EvaluateInvoiceStateChanged(9, state)
		assert.Equal(t, &AlertMutation{
			Op:        OpFix,
			AlertType: models.AlertTypeInvoiceNotSent,
			SourceID:  9,
		}, got, "state %s", state)
	}

	assert.Nil(t, EvaluateInvoiceStateChanged(9, models.InvoiceStatusDraft))
	assert.Nil(t, EvaluateInvoiceStateChanged(9, models.InvoiceStatusVoid))
}

func TestSourceAlertType(t *testing.T) {
	cases := map[string]string{
		models.LineItemSourceReceipt:  models.AlertTypeReceiptUnbilled,
		models.LineItemSourceScope:    models.AlertTypeScopeApprovedNoInvoice,
		models.LineItemSourceVoiceLog: models.AlertTypeVoiceLogNoInvoice,
	}
	for kind, want := range cases {
		got, ok := sourceAlertType(kind)
		assert.True(t, ok)
		assert.Equal(t, want, got)
	}

	_, ok := sourceAlertType(models.LineItemSourceManual)
	assert.False(t, ok)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, SeverityWarning, Classify(0))
	assert.Equal(t, SeverityWarning, Classify(49999))
	assert.Equal(t, SeverityCritical, Classify(50000))
	assert.Equal(t, SeverityCritical, Classify(120000))
}

func TestTotalOpenCents(t *testing.T) {
	alerts := []models.Alert{
		{AmountCents: 30000, Status: models.AlertStatusOpen},
		{AmountCents: 25000, Status: models.AlertStatusOpen},
		{AmountCents: 99999, Status: models.AlertStatusResolved},
	}
	assert.Equal(t, int64(55000), TotalOpenCents(alerts))
}
