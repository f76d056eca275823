package reporting

import (
	"errors"

	"github.com/ethereum-optimism/infra/op-wasp/runner"
)

// Multi fans every result out to each reporter in order. All reporters see
// every result even when one of them errors; the errors are joined.
type Multi []runner.Reporter

var _ runner.Reporter = Multi{}

func (m Multi) Consume(result *runner.UnitResult) error {
	var errs []error
	for _, r := range m {
		if err := r.Consume(result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Complete(result *runner.RunResult) error {
	var errs []error
	for _, r := range m {
		if err := r.Complete(result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
