package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestEnvelope_TaskAndReply(t *testing.T) {
	task := NewTask("What is the secret fact?")
	if task.ID == "" || task.CreatedAt.IsZero() {
		t.Fatalf("NewTask did not initialize fields: %+v", task)
	}

	env := NewTaskEnvelope(task, "control_plane.x", "worker.secret", 1)
	if env.Kind != KindTask || env.CorrelationID != task.ID || env.Source != "control_plane.x" || env.Destination != "worker.secret" {
		t.Fatalf("unexpected task envelope: %+v", env)
	}
	if err := env.Validate(); err != nil {
		t.Fatalf("valid envelope rejected: %v", err)
	}

	ok := env.Reply("worker.secret", "Cria", nil)
	if ok.Kind != KindResult || ok.CorrelationID != task.ID || ok.Destination != "control_plane.x" || ok.Payload != "Cria" || ok.Hop != 1 {
		t.Fatalf("unexpected result envelope: %+v", ok)
	}

	failed := env.Reply("worker.secret", "ignored", errors.New("tool exploded"))
	if failed.Kind != KindError || failed.Payload != "tool exploded" {
		t.Fatalf("unexpected error envelope: %+v", failed)
	}

	back := TaskFromEnvelope(env)
	if back.ID != task.ID || back.Payload != task.Payload {
		t.Fatalf("TaskFromEnvelope mismatch: %+v", back)
	}
}

func TestEnvelope_Validate(t *testing.T) {
	cases := map[string]Envelope{
		"missing id":    {Kind: KindResult},
		"bad kind":      {CorrelationID: "c", Kind: "NOPE"},
		"task no reply": {CorrelationID: "c", Kind: KindTask},
	}
	for name, env := range cases {
		if err := env.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestEnvelope_JSONSchema(t *testing.T) {
	env := Envelope{CorrelationID: "c1", Source: "s", Destination: "d", Kind: KindResult, Payload: "p"}
	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"correlation_id", "source_topic", "destination_topic", "kind", "payload"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing key %q in %s", key, data)
		}
	}
}

func TestWorkerDescriptor(t *testing.T) {
	d := NewWorkerDescriptor("secret_fact_agent", "Useful for getting the secret fact")
	if d.Topic != "worker.secret_fact_agent" {
		t.Fatalf("unexpected topic %q", d.Topic)
	}
	if got := (WorkerDescriptor{Name: "a"}).Normalize().Topic; got != "worker.a" {
		t.Fatalf("Normalize topic = %q", got)
	}
	if err := (WorkerDescriptor{}).Validate(); err == nil {
		t.Fatalf("expected error for empty descriptor")
	}
}

func TestConversation(t *testing.T) {
	c := NewConversation(NewTask("q"))
	c.Append("w1", "a1")
	if c.Task() != "q" || c.Last().Author != "w1" {
		t.Fatalf("unexpected conversation: %+v", c)
	}
	if c.String() != "user: q\nw1: a1" {
		t.Fatalf("unexpected rendering: %q", c.String())
	}
}
