// Package orders serves the pizza menu, diner order history and order
// submission.
//
// SubmitOrder attributes the order to the authenticated caller, prices every
// line from the current menu, stores the order and then makes exactly one
// call to the pizza factory. The factory's verification token is returned to
// the diner on success; on failure the stored order is kept and the caller
// gets an OrderSubmissionFailed error carrying the factory's report link.
package orders
