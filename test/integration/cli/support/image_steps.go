package support

import (
	"image"

	"github.com/MeKo-Tech/plotmeter/internal/testutil"
	"github.com/MeKo-Tech/plotmeter/internal/utils"
	"github.com/cucumber/godog"
)

// aPlotImageWithSquareBoundary draws a blue square of side pixels, centered
// on a canvas twice its size.
func (testCtx *TestContext) aPlotImageWithSquareBoundary(name string, side int) error {
	size := 2 * side
	off := side / 2
	img := testutil.SquarePlot(size, size, image.Rect(off, off, off+side, off+side))
	return utils.SavePNG(testCtx.Path(name), img)
}

func (testCtx *TestContext) aBlankImage(name string) error {
	return utils.SavePNG(testCtx.Path(name), testutil.Canvas(64, 64, testutil.White))
}

func (testCtx *TestContext) aCorruptFile(name string) error {
	return testCtx.writeFile(name, []byte("this is not an image"))
}

// RegisterImageSteps registers the steps that create input images.
func (testCtx *TestContext) RegisterImageSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a plot image "([^"]*)" with a square boundary of (\d+) pixels$`, testCtx.aPlotImageWithSquareBoundary)
	sc.Step(`^a blank image "([^"]*)"$`, testCtx.aBlankImage)
	sc.Step(`^a corrupt file "([^"]*)"$`, testCtx.aCorruptFile)
}
