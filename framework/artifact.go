package framework

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrEmptyBytecode = errors.New("artifact has no creation bytecode")

// Artifact is a compiled contract as emitted by hardhat (artifacts/) or forge (out/).
type Artifact struct {
	ContractName string
	Abi          *abi.ABI
	Code         []byte
	DeployedCode []byte
}

// CodeHash identifies the creation code, used to detect changed contracts
// between deployments.
func (a *Artifact) CodeHash() common.Hash {
	return crypto.Keccak256Hash(a.Code)
}

type artifactJSON struct {
	ContractName     string          `json:"contractName"`
	Abi              json.RawMessage `json:"abi"`
	Bytecode         json.RawMessage `json:"bytecode"`
	DeployedBytecode json.RawMessage `json:"deployedBytecode"`
}

// ReadArtifact loads a compiled contract from path. Both the hardhat layout
// ("bytecode": "0x..") and the forge layout ("bytecode": {"object": "0x.."})
// are accepted.
func ReadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", path, err)
	}
	return ParseArtifact(data, contractNameFromPath(path))
}

// ParseArtifact decodes artifact JSON. fallbackName is used when the artifact
// itself carries no contract name, as is the case for forge output.
func ParseArtifact(data []byte, fallbackName string) (*Artifact, error) {
	var raw artifactJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode artifact: %w", err)
	}
	if len(raw.Abi) == 0 {
		return nil, errors.New("artifact has no abi")
	}

	contractAbi, err := abi.JSON(bytes.NewReader(raw.Abi))
	if err != nil {
		return nil, fmt.Errorf("failed to parse artifact abi: %w", err)
	}

	code, err := decodeBytecode(raw.Bytecode)
	if err != nil {
		return nil, fmt.Errorf("bytecode: %w", err)
	}
	deployed, err := decodeBytecode(raw.DeployedBytecode)
	if err != nil {
		return nil, fmt.Errorf("deployedBytecode: %w", err)
	}

	name := raw.ContractName
	if name == "" {
		name = fallbackName
	}

	return &Artifact{
		ContractName: name,
		Abi:          &contractAbi,
		Code:         code,
		DeployedCode: deployed,
	}, nil
}

func decodeBytecode(raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var hex string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &hex); err != nil {
			return nil, err
		}
	} else {
		var obj struct {
			Object string `json:"object"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, err
		}
		hex = obj.Object
	}
	return common.FromHex(hex), nil
}

// contractNameFromPath maps "SupplyChain.sol/SupplyChain.json" to "SupplyChain".
func contractNameFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
