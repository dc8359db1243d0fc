package trace

import (
	"bufio"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// VerifyResult is the outcome of verifying a trace.
type VerifyResult struct {
	EventCount     int
	Valid          bool
	BrokenAt       int // -1 if no break
	Signed         bool
	SignatureOK    bool
	SignatureNoKey bool // signature present but no key to verify
	SigningKeyID   string
	ChainHash      string
	Error          string
}

// VerifyFile verifies the hash chain and optional signature of a trace file.
func VerifyFile(path string) (*VerifyResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	defer f.Close()
	return Verify(f, []byte(os.Getenv(SigningKeyEnv)))
}

// Verify checks hash chain integrity and, when key is non-empty, the HMAC
// signature carried by run_complete.
func Verify(r io.Reader, key []byte) (*VerifyResult, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	expected := genesis
	count := 0
	var last Event

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		count++

		var evt Event
		if err := json.Unmarshal(line, &evt); err != nil {
			return broken(count, "event %d: invalid JSON: %v", count, err), nil
		}
		if evt.PrevHash != expected {
			return broken(count, "event %d: prev_hash mismatch (expected %s, got %s)", count, short(expected), short(evt.PrevHash)), nil
		}
		h := sha256.Sum256(line)
		expected = hex.EncodeToString(h[:])
		last = evt
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}

	result := &VerifyResult{EventCount: count, Valid: true, BrokenAt: -1}
	if last.Type != EventRunComplete || last.Data == nil {
		return result, nil
	}
	result.ChainHash, _ = last.Data["chain_hash"].(string)
	if result.ChainHash != last.PrevHash {
		result.Valid = false
		result.BrokenAt = count
		result.Error = "run_complete chain_hash does not match the chain"
		return result, nil
	}
	if sig, ok := last.Data["signature"].(string); ok {
		result.Signed = true
		result.SigningKeyID, _ = last.Data["signing_key_id"].(string)
		if len(key) == 0 {
			result.SignatureNoKey = true
		} else {
			result.SignatureOK = hmac.Equal([]byte(sig), []byte(sign(key, result.ChainHash)))
		}
	}
	return result, nil
}

func broken(at int, format string, args ...any) *VerifyResult {
	return &VerifyResult{EventCount: at, Valid: false, BrokenAt: at, Error: fmt.Sprintf(format, args...)}
}

func short(h string) string {
	if len(h) > 16 {
		return h[:16] + "..."
	}
	return h
}
