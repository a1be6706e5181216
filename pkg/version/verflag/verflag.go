package verflag

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/pflag"
	"visagateway/pkg/version"
)

type versionValue int

const (
	versionFalse versionValue = 0
	versionTrue  versionValue = 1
	versionRaw   versionValue = 2
)

const strRawVersion string = "raw"

func (v *versionValue) IsBoolFlag() bool {
	return true
}

func (v *versionValue) Get() interface{} {
	return versionValue(*v)
}

func (v *versionValue) Set(s string) error {
	if s == strRawVersion {
		*v = versionRaw
		return nil
	}
	boolVal, err := strconv.ParseBool(s)
	if boolVal {
		*v = versionTrue
	} else {
		*v = versionFalse
	}
	return err
}

func (v *versionValue) String() string {
	if *v == versionRaw {
		return strRawVersion
	}
	return fmt.Sprintf("%v", bool(*v == versionTrue))
}

// The type of the flag as required by the pflag.Value interface
func (v *versionValue) Type() string {
	return "version"
}

var versionFlag = versionVar("version", versionFalse, "Print version information and quit")

func versionVar(name string, value versionValue, usage string) *versionValue {
	p := new(versionValue)
	*p = value
	pflag.Var(p, name, usage)
	// "--version" will be treated as "--version=true"
	pflag.Lookup(name).NoOptDefVal = "true"
	return p
}

// AddFlags registers this package's flags on arbitrary FlagSets.
func AddFlags(fs *pflag.FlagSet) {
	fs.AddFlag(pflag.Lookup("version"))
}

// PrintAndExitIfRequested will check if the -version flag was passed
// and, if so, print the version and exit.
func PrintAndExitIfRequested() {
	if *versionFlag == versionRaw {
		fmt.Printf("%#v\n", version.Get())
		os.Exit(0)
	} else if *versionFlag == versionTrue {
		fmt.Printf("%s\n", version.Get())
		os.Exit(0)
	}
}
