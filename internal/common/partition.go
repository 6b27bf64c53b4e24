package common

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

const (
	VMTypeEVM = "evm"

	subjectPrefix = "chain"
	subjectSuffix = "persistence"
)

// PersistenceSubjectWildcard matches every partition's persistence subject.
const PersistenceSubjectWildcard = subjectPrefix + ".*.*.*." + subjectSuffix

var ErrInvalidPartition = errors.New("invalid partition")

// PartitionConfig identifies a buffer, a batch file prefix and a bus subject.
type PartitionConfig struct {
	Network string `json:"network" schema:"network"`
	Subnet  string `json:"subnet" schema:"subnet"`
	VMType  string `json:"vm_type" schema:"vm_type"`
}

// Key is the writer's buffer key, "network:subnet:vm_type".
func (p PartitionConfig) Key() string {
	return p.Network + ":" + p.Subnet + ":" + p.VMType
}

func (p PartitionConfig) String() string {
	return p.Key()
}

func (p PartitionConfig) Validate() error {
	fields := [...]struct{ name, value string }{
		{"network", p.Network},
		{"subnet", p.Subnet},
		{"vm_type", p.VMType},
	}
	for _, f := range fields {
		if f.value == "" {
			return fmt.Errorf("%w: %s must not be empty", ErrInvalidPartition, f.name)
		}
		if strings.ContainsAny(f.value, ".:/*> ") {
			return fmt.Errorf("%w: %s %q contains a reserved character", ErrInvalidPartition, f.name, f.value)
		}
	}
	return nil
}

// HivePath returns the object key prefix below the given root, e.g.
// "txs/network=mainnet/subnet=c/vm_type=evm".
func (p PartitionConfig) HivePath(prefix string) string {
	return path.Join(prefix,
		"network="+p.Network,
		"subnet="+p.Subnet,
		"vm_type="+p.VMType,
	)
}

// Subject is the bus subject transactions of this partition are published on.
func (p PartitionConfig) Subject() string {
	return strings.Join([]string{subjectPrefix, p.Network, p.Subnet, p.VMType, subjectSuffix}, ".")
}

// ParsePartitionKey is the inverse of Key.
func ParsePartitionKey(key string) (PartitionConfig, error) {
	parts := strings.Split(key, ":")
	if len(parts) != 3 {
		return PartitionConfig{}, fmt.Errorf("%w: malformed key %q", ErrInvalidPartition, key)
	}
	p := PartitionConfig{Network: parts[0], Subnet: parts[1], VMType: parts[2]}
	if err := p.Validate(); err != nil {
		return PartitionConfig{}, err
	}
	return p, nil
}

// ParseSubject extracts the partition from "chain.<network>.<subnet>.<vm_type>.persistence".
func ParseSubject(subject string) (PartitionConfig, error) {
	parts := strings.Split(subject, ".")
	if len(parts) != 5 || parts[0] != subjectPrefix || parts[4] != subjectSuffix {
		return PartitionConfig{}, fmt.Errorf("%w: malformed subject %q", ErrInvalidPartition, subject)
	}
	p := PartitionConfig{Network: parts[1], Subnet: parts[2], VMType: parts[3]}
	if err := p.Validate(); err != nil {
		return PartitionConfig{}, err
	}
	return p, nil
}
