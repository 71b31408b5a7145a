package analytics

// Status separates "the query worked but found nothing" from "the query failed".
type Status string

const (
	StatusSuccess Status = "success"
	StatusEmpty   Status = "empty"
	StatusFailure Status = "failure"
)

// Result wraps a computed value with the outcome of the query that produced it.
type Result[T any] struct {
	Status Status `json:"status" msgpack:"status"`
	Data   T      `json:"data" msgpack:"data"`
	Reason string `json:"reason,omitempty" msgpack:"reason,omitempty"`
}

// Success wraps data. If empty is true the result is marked StatusEmpty instead.
func Success[T any](data T, empty bool) Result[T] {
	if empty {
		return Result[T]{Status: StatusEmpty, Data: data}
	}
	return Result[T]{Status: StatusSuccess, Data: data}
}

// Failure records why a result could not be computed.
func Failure[T any](err error) Result[T] {
	r := Result[T]{Status: StatusFailure}
	if err != nil {
		r.Reason = err.Error()
	}
	return r
}

// OK reports whether the computation completed, with or without rows.
func (r Result[T]) OK() bool {
	return r.Status != StatusFailure
}
