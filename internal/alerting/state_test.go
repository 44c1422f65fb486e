package alerting

import "testing"

func TestStateTracker(t *testing.T) {
	st := NewStateTracker()

	if st.GetState("unknown") != StateClear {
		t.Error("Expected unseen drone to be CLEAR")
	}

	st.SetAlerted("b")
	st.SetAlerted("a")
	if st.GetState("a") != StateAlerted {
		t.Error("Expected drone a to be ALERTED")
	}

	ids := st.Alerted()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("Expected sorted [a b], got %v", ids)
	}

	st.Clear("a")
	if st.GetState("a") != StateClear || st.Count() != 1 {
		t.Errorf("Expected a cleared and 1 tracked, got %s and %d", st.GetState("a"), st.Count())
	}
}
