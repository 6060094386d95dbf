// Package dynamo adapts DynamoDB tables to goReset's IdentityResolver and
// TokenSink collaborators.
package dynamo
