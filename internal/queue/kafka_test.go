package queue

import (
	"errors"
	"strings"
	"testing"

	"github.com/segmentio/kafka-go"
)

func TestDecodeAlert(t *testing.T) {
	msg := kafka.Message{Value: []byte(`{"type":"INTRUSION_DETECTED","record_id":7,"drone_id":"14","drone_name":"TARGET 14"}`)}

	alert, err := DecodeAlert(msg)
	if err != nil {
		t.Fatalf("DecodeAlert failed: %v", err)
	}
	if alert.RecordID != 7 || alert.DroneID != "14" || alert.DroneName != "TARGET 14" {
		t.Errorf("Unexpected alert: %+v", alert)
	}
}

func TestDecodeAlert_NameFallsBackToID(t *testing.T) {
	msg := kafka.Message{Value: []byte(`{"type":"INTRUSION_DETECTED","drone_id":"15"}`)}

	alert, err := DecodeAlert(msg)
	if err != nil {
		t.Fatalf("DecodeAlert failed: %v", err)
	}
	if alert.DroneName != "15" {
		t.Errorf("Expected drone name '15', got %q", alert.DroneName)
	}
}

func TestDecodeAlert_Rejects(t *testing.T) {
	cases := map[string]string{
		"not json":      `{`,
		"unknown type":  `{"type":"TEMPERATURE_HIGH","drone_id":"14"}`,
		"no drone id":   `{"type":"INTRUSION_DETECTED"}`,
		"empty payload": `null`,
	}
	for name, value := range cases {
		_, err := DecodeAlert(kafka.Message{Partition: 2, Offset: 40, Value: []byte(value)})
		if !errors.Is(err, ErrMalformedAlert) {
			t.Errorf("%s: Expected ErrMalformedAlert, got %v", name, err)
			continue
		}
		if want := "at 2/40"; !strings.Contains(err.Error(), want) {
			t.Errorf("%s: Expected error to name position %q, got %v", name, want, err)
		}
	}
}
