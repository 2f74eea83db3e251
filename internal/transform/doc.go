/*
Package transform is the rendition pipeline: it derives rendition paths,
probes encoder backends, runs the backend chain and stores the result in the
repository.

A Format is a plain record (extension, output MIME type, accepted source
types, backend chain). The Factory maps format keys to Formats and builds
short-lived Transformers for a single source file:

	t, err := factory.CreateTransformer("webp", file, transform.Options{})
	if err != nil {
		return err
	}
	res, err := t.TransformLikeThumb(ctx, 320)

Rendition paths are pure functions of the source path, the format and the
width:

	webp/<hash path><name>.webp                 public zone, full size
	webp/<hash path><width>px-<name>.webp       thumb zone

With Overwrite off an existing rendition is never encoded again, and a
concurrent writer winning the store race is reported as OutcomeAlreadyExists
rather than a failure.
*/
package transform
