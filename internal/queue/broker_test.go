package queue

import "testing"

func TestQueueKey_Namespaced(t *testing.T) {
	if got := queueKey("default"); got != "bff:queue:default" {
		t.Fatalf("queueKey(default) = %q", got)
	}
}

func TestProcessingKey_Namespaced(t *testing.T) {
	if got := processingKey("default"); got != "bff:queue:default:processing" {
		t.Fatalf("processingKey(default) = %q", got)
	}
}
