package ethledger

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

const contractName = "Certification"

// LoadDeploymentConfig reads the contract address written by the deployment
// script, a JSON object mapping contract name to address.
func LoadDeploymentConfig(path string) (common.Address, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return common.Address{}, fmt.Errorf("read deployment config: %w", err)
	}
	var deployed map[string]string
	if err := json.Unmarshal(data, &deployed); err != nil {
		return common.Address{}, fmt.Errorf("parse deployment config: %w", err)
	}
	return parseAddress(deployed[contractName])
}

func parseAddress(value string) (common.Address, error) {
	value = strings.TrimSpace(value)
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid %s contract address %q", contractName, value)
	}
	return common.HexToAddress(value), nil
}
