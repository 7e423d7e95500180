package entity

// ID identifies one entity in the world. IDs are assigned monotonically
// starting at 1 and are never handed out twice, so a stale ID held by a
// caller can never alias a newer entity.
type ID int64
