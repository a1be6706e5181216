package options

import "fmt"

func Validate(o *Options) []error {
	var errs []error
	if err := o.BaseOptions.ValidateAndApply(); err != nil {
		errs = append(errs, err)
	}
	if o.ProbeTimeout <= 0 {
		errs = append(errs, fmt.Errorf("probe-timeout must be positive, got %s", o.ProbeTimeout))
	}

	return errs
}
