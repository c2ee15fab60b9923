package evmprobe

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

// Supported ABI type tags.
const (
	TypeUint8   = "uint8"
	TypeUint256 = "uint256"
	TypeAddress = "address"
	TypeBool    = "bool"
	TypeString  = "string"
)

var supportedTypes = map[string]bool{
	TypeUint8:   true,
	TypeUint256: true,
	TypeAddress: true,
	TypeBool:    true,
	TypeString:  true,
}

// FunctionDescriptor identifies one callable contract surface: a name plus
// ordered input and output type tags. It is immutable once built.
type FunctionDescriptor struct {
	name    string
	inputs  abi.Arguments
	outputs abi.Arguments
	id      [4]byte
}

// NewFunction builds a descriptor from a name and type tags.
func NewFunction(name string, inputs, outputs []string) (FunctionDescriptor, error) {
	if name == "" {
		return FunctionDescriptor{}, &EncodingError{Function: "<unnamed>", Index: -1, Err: fmt.Errorf("%w: empty function name", ErrTypeMismatch)}
	}
	in, err := newArguments(name, inputs)
	if err != nil {
		return FunctionDescriptor{}, err
	}
	out, err := newArguments(name, outputs)
	if err != nil {
		return FunctionDescriptor{}, err
	}

	fn := FunctionDescriptor{name: name, inputs: in, outputs: out}
	copy(fn.id[:], crypto.Keccak256([]byte(fn.Signature()))[:4])
	return fn, nil
}

// MustFunction is like NewFunction but panics on error.
// Use only for static capability tables.
func MustFunction(name string, inputs, outputs []string) FunctionDescriptor {
	fn, err := NewFunction(name, inputs, outputs)
	if err != nil {
		panic(err)
	}
	return fn
}

// FunctionFromABI converts a parsed ABI method into a descriptor.
// Methods using types outside the supported set are rejected.
func FunctionFromABI(m abi.Method) (FunctionDescriptor, error) {
	return NewFunction(m.RawName, argumentTypes(m.Inputs), argumentTypes(m.Outputs))
}

func newArguments(fn string, tags []string) (abi.Arguments, error) {
	args := make(abi.Arguments, len(tags))
	for i, tag := range tags {
		if !supportedTypes[tag] {
			return nil, &EncodingError{Function: fn, Index: i, Err: fmt.Errorf("%w: %q", ErrUnsupportedType, tag)}
		}
		t, err := abi.NewType(tag, "", nil)
		if err != nil {
			return nil, &EncodingError{Function: fn, Index: i, Err: err}
		}
		args[i] = abi.Argument{Type: t}
	}
	return args, nil
}

func argumentTypes(args abi.Arguments) []string {
	tags := make([]string, len(args))
	for i, a := range args {
		tags[i] = a.Type.String()
	}
	return tags
}

// Name returns the function name.
func (f FunctionDescriptor) Name() string {
	return f.name
}

// Inputs returns the input type tags.
func (f FunctionDescriptor) Inputs() []string {
	return argumentTypes(f.inputs)
}

// Outputs returns the output type tags.
func (f FunctionDescriptor) Outputs() []string {
	return argumentTypes(f.outputs)
}

// Signature returns the canonical signature, e.g. "transfer(address,uint256)".
func (f FunctionDescriptor) Signature() string {
	return f.name + "(" + strings.Join(f.Inputs(), ",") + ")"
}

// Selector returns the 4-byte function selector.
func (f FunctionDescriptor) Selector() [4]byte {
	return f.id
}

// String implements fmt.Stringer.
func (f FunctionDescriptor) String() string {
	if len(f.outputs) == 0 {
		return f.Signature()
	}
	return f.Signature() + " returns (" + strings.Join(f.Outputs(), ",") + ")"
}

// hasDynamicOutputs reports whether any output is length-prefixed.
func (f FunctionDescriptor) hasDynamicOutputs() bool {
	for _, o := range f.outputs {
		if o.Type.T == abi.StringTy {
			return true
		}
	}
	return false
}
