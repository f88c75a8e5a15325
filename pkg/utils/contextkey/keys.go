package contextkey

// key is a private type to avoid context key collisions across packages.
type key string

// SlaveUID identifies the slave process (and, since a slave handles
// exactly one submission, that submission's invocation) a log line came
// from.
const SlaveUID key = "slave_uid"
