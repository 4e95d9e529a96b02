package graph

import "errors"

// Contract violations, rejected before any solving starts.
var (
	ErrEmptyEntities      = errors.New("graph: entity set is empty")
	ErrEmptyID            = errors.New("graph: entity has empty id")
	ErrDuplicateEntity    = errors.New("graph: duplicate entity")
	ErrNegativeCentrality = errors.New("graph: centrality must be a non-negative number")
	ErrUnknownEntity      = errors.New("graph: relation references unknown entity")
	ErrSelfRelation       = errors.New("graph: relation joins an entity to itself")
	ErrNegativeWeight     = errors.New("graph: relation weight must be a non-negative number")
)
