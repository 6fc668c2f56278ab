// Package review provides the business boundary for the human review workflow.
// It defines the queue and feedback store contracts, the Service that lists
// enriched pending items, applies verdicts across the queue, decision log and
// feedback stores, and computes queue statistics, plus the domain models.
package review
