// Package accountstore groups the bundled goPhoneAuth.AccountStore adapters.
//
//   - memory: in-process maps, for tests, demos and the load test.
//   - mongo: one document per account with an embedded phones array.
//   - postgres: accounts plus an account_phones table whose partial unique
//     index rejects a second verified holder of a number.
//
// Adapters import goPhoneAuth; goPhoneAuth never imports them.
package accountstore
