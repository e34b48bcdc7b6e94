package fixture

import "github.com/opencoff/go-utils"

// SizeValue is a pflag.Value for a human-readable size ("1k", "8M", ...),
// grounded on the teacher's testsuite/flag_size.go.
type SizeValue uint64

func (v *SizeValue) String() string {
	return utils.HumanizeSize(uint64(*v))
}

func (v *SizeValue) Set(s string) error {
	z, err := utils.ParseSize(s)
	*v = SizeValue(z)
	return err
}

func (v *SizeValue) Type() string {
	return "size"
}

func (v *SizeValue) Value() uint64 {
	return uint64(*v)
}
