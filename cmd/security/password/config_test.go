package password

import (
	"os"
	"testing"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{
		"MESSAGELY_BCRYPT_WORK_FACTOR",
		"MESSAGELY_PASSWORD_MIN_LEN",
		"MESSAGELY_PASSWORD_MAX_LEN",
		"MESSAGELY_PASSWORD_REJECT_VERY_WEAK",
	} {
		_ = os.Unsetenv(k)
	}

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}

	def := DefaultConfig()
	if cfg.WorkFactor != def.WorkFactor {
		t.Fatalf("work factor mismatch: got %d want %d", cfg.WorkFactor, def.WorkFactor)
	}
	if cfg.Policy != def.Policy {
		t.Fatalf("policy mismatch: %+v", cfg.Policy)
	}
}

func TestFromEnv_Override(t *testing.T) {
	t.Setenv("MESSAGELY_BCRYPT_WORK_FACTOR", "10")
	t.Setenv("MESSAGELY_PASSWORD_MIN_LEN", "8")
	t.Setenv("MESSAGELY_PASSWORD_MAX_LEN", "64")
	t.Setenv("MESSAGELY_PASSWORD_REJECT_VERY_WEAK", "true")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}

	if cfg.WorkFactor != 10 {
		t.Fatalf("work factor override failed: %d", cfg.WorkFactor)
	}
	if cfg.Policy.MinLength != 8 || cfg.Policy.MaxLength != 64 || !cfg.Policy.RejectVeryWeak {
		t.Fatalf("policy override failed: %+v", cfg.Policy)
	}
}

func TestFromEnv_WorkFactorOutOfRange(t *testing.T) {
	for _, v := range []string{"3", "32", "abc", ""} {
		t.Run(v, func(t *testing.T) {
			t.Setenv("MESSAGELY_BCRYPT_WORK_FACTOR", v)
			if _, err := FromEnv(); err == nil {
				t.Fatalf("expected error for %q", v)
			}
		})
	}
}

func TestFromEnv_InvalidMinMax(t *testing.T) {
	t.Setenv("MESSAGELY_PASSWORD_MIN_LEN", "20")
	t.Setenv("MESSAGELY_PASSWORD_MAX_LEN", "10")

	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected error")
	}
}
