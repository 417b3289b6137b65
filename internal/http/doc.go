// Package http provides HTTP handlers and middleware for the patient
// workflow API.
//
// The router exposes the following endpoints:
//   - POST /sessions, DELETE /sessions/current: session lifecycle. Login issues
//     a token surfaced via the response body, the `X-Session-Token` header, and
//     a `session_token` cookie.
//   - GET /rooms: the ordered room catalog of the department.
//   - GET /patients, POST /patients, GET /patients/{id},
//     POST /patients/{id}/complete, POST /patients/{id}/move: patient pathway
//     endpoints exchanging the `patientDTO` payload defined in
//     patient_handler.go. Listing accepts `room`, `status`, and `period` query
//     parameters.
//   - GET /users, POST /users, PUT /users/{id}, DELETE /users/{id} and the
//     matching /roles endpoints: account and permission management.
//   - GET /assets, POST /assets, GET|PUT /assets/{id},
//     POST /assets/{id}/movements, GET /assets/{id}/lifesheet (xlsx download),
//     plus GET|POST /stock, GET /stock/{id}, POST /stock/{id}/movements:
//     patrimony and consumable inventory.
//   - GET|POST /hotlab/lots, GET /hotlab/lots/{id}, GET|POST
//     /hotlab/lots/{id}/doses, POST /hotlab/doses/{id}/administer: hot lab
//     tracer lots and dose withdrawals.
//   - GET /reports/activity, GET /reports/occupancy, GET /reports/statistics:
//     reporting views.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth. All user-facing error messages
// are French; wire field names stay in snake_case English.
package http
