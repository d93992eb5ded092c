package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"yieldScope/internal/config"
)

func TestWatchTargetFromMintResponse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mint.json")
	body := `{"txId":"5d41402abc4b2a76b9719d911017c592ae1e5f0d4a5b6c8d9e0f1a2b3c4d5e6f","ipfs_link":"ipfs://x","document_name":"lease.pdf"}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	hash, err := watchTarget(config.WatchConfig{MintResponse: path})
	if err != nil {
		t.Fatalf("target: %v", err)
	}
	want := common.HexToHash("0x5d41402abc4b2a76b9719d911017c592ae1e5f0d4a5b6c8d9e0f1a2b3c4d5e6f")
	if hash != want {
		t.Fatalf("hash mismatch: %s", hash.Hex())
	}
}

func TestWatchTargetPrefersFlag(t *testing.T) {
	hash, err := watchTarget(config.WatchConfig{TxHash: "0x01" + strings.Repeat("0", 62), MintResponse: "missing.json"})
	if err != nil {
		t.Fatalf("target: %v", err)
	}
	if hash == (common.Hash{}) {
		t.Fatalf("expected hash from flag")
	}

	if _, err := watchTarget(config.WatchConfig{}); err == nil {
		t.Fatalf("expected error without a target")
	}
}
