// Package sequence provides a lazy, extensible sequence of steps and a runner
// that drives it to completion, unwrapping asynchronous results as it goes.
// The package is generic and can be used with any data type.
//
// # Key Features
//
//   - **Lazy**: Steps are read from the live list when the cursor reaches them, so a step
//     may append new steps to its own sequence while it runs.
//   - **Iterator**: A Sequence is a pull iterator; it can be stepped by hand, ranged over,
//     or handed to a Runner.
//   - **Async**: A step returns either a plain value or a handle that settles later.
//   - **Gate**: Several handles can be joined into one ordered result.
//   - **Adapter**: Callback style functions can be turned into steps.
//
// # Core Concepts
//
//   - **Step**: The basic unit of work. It's an interface with a single method, `Run`,
//     returning an [Outcome]: a plain [Value] or an [Async] handle.
//   - **Thenable**: Anything that can attach success and failure continuations. [Promise]
//     is the implementation shipped with the package.
//   - **Sequence**: An append-only list of steps with a cursor.
//   - **Runner**: Calls Next until the iterator is done, suspending on async handles.
//   - **Gate**: A fan-in of handles that fails on the first rejection.
//   - **Generator**: A coroutine body that yields outcomes; a Runner drives it like a Sequence.
//   - **Middleware**: A function that wraps a step to add functionality, such as logging.
package sequence
