package klog

import "testing"

func TestSetLevelMasksDebug(t *testing.T) {
	prev := SetLevel(Error | Warn)
	defer SetLevel(prev)

	if Level()&Debug != 0 {
		t.Errorf("expected Debug to be masked out after SetLevel(Error|Warn)")
	}
	if Level()&Error == 0 {
		t.Errorf("expected Error to remain enabled")
	}
}

func TestSetLevelReturnsPreviousMask(t *testing.T) {
	SetLevel(Error | Warn | Info | Debug | Stats)
	prev := SetLevel(Nothing)
	if prev&Debug == 0 {
		t.Errorf("expected the returned previous mask to include Debug")
	}
	SetLevel(prev)
}

func TestFatalMaskAlwaysSet(t *testing.T) {
	SetLevel(Nothing)
	defer SetLevel(Error | Warn | Info | Debug | Stats)

	if Level()&fatalMask == 0 {
		t.Errorf("expected the fatal bit to stay set even when every level is masked off")
	}
}
