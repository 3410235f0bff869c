package framework_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/flashbots/suapp-supplychain/framework"
	"github.com/flashbots/suapp-supplychain/internal/simulated"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAbi = `[{"type":"function","name":"productCount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}]`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestReadArtifact(t *testing.T) {
	dir := t.TempDir()

	t.Run("hardhat layout", func(t *testing.T) {
		path := filepath.Join(dir, "hardhat", "SupplyChain.json")
		writeFile(t, path, `{"contractName":"SupplyChain","abi":`+testAbi+`,"bytecode":"0x6080","deployedBytecode":"0x60ff"}`)

		artifact, err := framework.ReadArtifact(path)
		require.NoError(t, err)
		assert.Equal(t, "SupplyChain", artifact.ContractName)
		assert.Equal(t, []byte{0x60, 0x80}, artifact.Code)
		assert.Equal(t, []byte{0x60, 0xff}, artifact.DeployedCode)
		assert.Contains(t, artifact.Abi.Methods, "productCount")
	})

	t.Run("forge layout", func(t *testing.T) {
		path := filepath.Join(dir, "out", "SupplyChain.sol", "SupplyChain.json")
		writeFile(t, path, `{"abi":`+testAbi+`,"bytecode":{"object":"0x6080"},"deployedBytecode":{"object":"0x60ff"}}`)

		artifact, err := framework.ReadArtifact(path)
		require.NoError(t, err)
		assert.Equal(t, "SupplyChain", artifact.ContractName, "name falls back to the file name")
		assert.Equal(t, []byte{0x60, 0x80}, artifact.Code)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := framework.ReadArtifact(filepath.Join(dir, "nope.json"))
		require.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("no abi", func(t *testing.T) {
		_, err := framework.ParseArtifact([]byte(`{"bytecode":"0x60"}`), "X")
		require.Error(t, err)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := framework.ParseArtifact([]byte(`{`), "X")
		require.Error(t, err)
	})
}

func TestFramework_ReadArtifactRelative(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "SupplyChain.sol", "SupplyChain.json"),
		`{"abi":`+testAbi+`,"bytecode":{"object":"0x6080"}}`)

	fr, err := framework.NewWithBackend(context.Background(), testLogger(), simulated.NewBackend(), framework.Config{ArtifactsDir: dir})
	require.NoError(t, err)

	artifact, err := fr.ReadArtifact("SupplyChain.sol/SupplyChain.json")
	require.NoError(t, err)
	assert.Equal(t, "SupplyChain", artifact.ContractName)
}

func TestPrivKey(t *testing.T) {
	// First hardhat/anvil development account.
	const (
		hexKey  = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
		address = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	)

	for _, in := range []string{hexKey, "0x" + hexKey} {
		key, err := framework.NewPrivKeyFromHex(in)
		require.NoError(t, err)
		assert.Equal(t, address, key.Address().Hex())
		assert.Equal(t, "0x"+hexKey, key.Hex())
	}

	_, err := framework.NewPrivKeyFromHex("not-a-key")
	require.Error(t, err)

	assert.NotEqual(t, framework.GeneratePrivKey().Address(), framework.GeneratePrivKey().Address())
}
