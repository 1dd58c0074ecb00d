package pipeline

import "github.com/pkg/errors"

var (
	ErrNoStages            = errors.New("at least one stage must be declared")
	ErrStageNameMustBeSet  = errors.New("stage name must be set")
	ErrWorkerMustBeSet     = errors.New("stage worker must be set")
	ErrDuplicateStageName  = errors.New("stage name already declared")
	ErrUnknownPredecessor  = errors.New("required stage is not declared")
	ErrPredecessorNotFirst = errors.New("required stage must be declared before the stage requiring it")
	ErrSelfDependency      = errors.New("stage cannot require itself")
)
